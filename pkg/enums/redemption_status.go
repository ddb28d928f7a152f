package enums

import "fmt"

// RedemptionStatus tracks the lifecycle of a reward redemption.
type RedemptionStatus string

const (
	RedemptionStatusPending   RedemptionStatus = "pending"
	RedemptionStatusVerified  RedemptionStatus = "verified"
	RedemptionStatusCollected RedemptionStatus = "collected"
	RedemptionStatusExpired   RedemptionStatus = "expired"
	RedemptionStatusRejected  RedemptionStatus = "rejected"
)

var validRedemptionStatuses = []RedemptionStatus{
	RedemptionStatusPending,
	RedemptionStatusVerified,
	RedemptionStatusCollected,
	RedemptionStatusExpired,
	RedemptionStatusRejected,
}

// String implements fmt.Stringer.
func (r RedemptionStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RedemptionStatus.
func (r RedemptionStatus) IsValid() bool {
	for _, candidate := range validRedemptionStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from this status.
func (r RedemptionStatus) IsTerminal() bool {
	switch r {
	case RedemptionStatusCollected, RedemptionStatusExpired, RedemptionStatusRejected:
		return true
	}
	return false
}

// CanExpire reports whether the passage of time moves this status to expired.
func (r RedemptionStatus) CanExpire() bool {
	return r == RedemptionStatusPending || r == RedemptionStatusVerified
}

// ParseRedemptionStatus converts raw input into a RedemptionStatus.
func ParseRedemptionStatus(value string) (RedemptionStatus, error) {
	for _, candidate := range validRedemptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid redemption status %q", value)
}
