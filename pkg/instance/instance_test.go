package instance

import "testing"

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("EDUREWARDS_INSTANCE_ID", "kiosk-7")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "kiosk-7" {
		t.Fatalf("expected kiosk-7, got %s", got)
	}
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("EDUREWARDS_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected web.1, got %s", got)
	}
}
