package enums

import (
	"fmt"
	"strings"
)

// VerificationIntent is the action a verifier takes when presented with a redemption.
type VerificationIntent string

const (
	VerificationIntentAccept  VerificationIntent = "accept"
	VerificationIntentReject  VerificationIntent = "reject"
	VerificationIntentCollect VerificationIntent = "collect"
)

var validVerificationIntents = []VerificationIntent{
	VerificationIntentAccept,
	VerificationIntentReject,
	VerificationIntentCollect,
}

// String implements fmt.Stringer.
func (v VerificationIntent) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VerificationIntent.
func (v VerificationIntent) IsValid() bool {
	for _, candidate := range validVerificationIntents {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVerificationIntent converts raw input into a VerificationIntent. Empty input means accept.
func ParseVerificationIntent(value string) (VerificationIntent, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return VerificationIntentAccept, nil
	}
	for _, candidate := range validVerificationIntents {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification intent %q", value)
}
