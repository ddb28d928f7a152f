package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/edurewards/edurewards-backend/pkg/config"
	"github.com/edurewards/edurewards-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "edurewards",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID:   "teacher-42",
		Role:     enums.RoleTeacher,
		SchoolID: "school-7",
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != "teacher-42" || claims.Subject != "teacher-42" {
		t.Fatalf("unexpected subject %s/%s", claims.UserID, claims.Subject)
	}
	if claims.Role != enums.RoleTeacher {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.SchoolID != "school-7" {
		t.Fatalf("school id not preserved")
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("issuer mismatch")
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}
	if exp := claims.ExpiresAt.Time; exp.Sub(now) > 31*time.Minute || exp.Sub(now) < 29*time.Minute {
		t.Fatalf("unexpected expiry %s", exp)
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name    string
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		{"missing secret", config.JWTConfig{Issuer: "x", ExpirationMinutes: 1}, AccessTokenPayload{UserID: "u", Role: enums.RoleStudent}},
		{"missing issuer", config.JWTConfig{Secret: "x", ExpirationMinutes: 1}, AccessTokenPayload{UserID: "u", Role: enums.RoleStudent}},
		{"zero ttl", config.JWTConfig{Secret: "x", Issuer: "x"}, AccessTokenPayload{UserID: "u", Role: enums.RoleStudent}},
		{"missing user", testJWTConfig(), AccessTokenPayload{Role: enums.RoleStudent}},
		{"bad role", testJWTConfig(), AccessTokenPayload{UserID: "u", Role: "principal"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := MintAccessToken(tc.cfg, now, tc.payload); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: "student-1", Role: enums.RoleStudent})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature failure")
	}

	wrongIssuer := cfg
	wrongIssuer.Issuer = "someone-else"
	if _, err := ParseAccessToken(wrongIssuer, token); err == nil {
		t.Fatal("expected issuer failure")
	}

	parts := strings.Split(token, ".")
	if _, err := ParseAccessToken(cfg, parts[0]+"."+parts[1]+".AAAA"); err == nil {
		t.Fatal("expected tampered signature failure")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: "student-1", Role: enums.RoleStudent})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}
