package instance

import "os"

// GetID identifies this process: an API dyno or an offline verifier device.
// EDUREWARDS_INSTANCE_ID wins, then the platform's DYNO, then the hostname.
func GetID() string {
	if id := os.Getenv("EDUREWARDS_INSTANCE_ID"); id != "" {
		return id
	}
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
