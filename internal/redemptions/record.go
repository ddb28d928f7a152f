package redemptions

import (
	"time"

	"github.com/edurewards/edurewards-backend/pkg/enums"
)

// Record is a redemption as owned by the Store. Callers only ever receive copies.
type Record struct {
	ID             string                 `msgpack:"id"`
	StudentID      string                 `msgpack:"sid"`
	ProductID      string                 `msgpack:"pid"`
	ProductName    string                 `msgpack:"pn"`
	CoinsRedeemed  int64                  `msgpack:"coins"`
	Timestamp      int64                  `msgpack:"ts"`
	ExpiryDate     int64                  `msgpack:"exp"`
	OneTimeToken   string                 `msgpack:"tok"`
	RedemptionCode string                 `msgpack:"code"`
	Status         enums.RedemptionStatus `msgpack:"st"`

	VerifierID      string     `msgpack:"vid,omitempty"`
	RejectionReason string     `msgpack:"rr,omitempty"`
	VerifiedAt      *time.Time `msgpack:"vat,omitempty"`
	CollectedAt     *time.Time `msgpack:"cat,omitempty"`
	RejectedAt      *time.Time `msgpack:"rat,omitempty"`
	UpdatedAt       time.Time  `msgpack:"uat"`
}

// CreatedAt returns the creation instant.
func (r *Record) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

// ExpiresAt returns the end of the validity window.
func (r *Record) ExpiresAt() time.Time {
	return time.UnixMilli(r.ExpiryDate).UTC()
}

// IsExpiredAt reports whether the validity window has closed at now.
func (r *Record) IsExpiredAt(now time.Time) bool {
	return now.UnixMilli() >= r.ExpiryDate
}

// EffectiveStatus is the status any reader should observe at now. Expiry is never
// written by a background process, so a stored pending/verified record past its
// window reads as expired.
func (r *Record) EffectiveStatus(now time.Time) enums.RedemptionStatus {
	if r.Status.CanExpire() && r.IsExpiredAt(now) {
		return enums.RedemptionStatusExpired
	}
	return r.Status
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.VerifiedAt = cloneTime(r.VerifiedAt)
	out.CollectedAt = cloneTime(r.CollectedAt)
	out.RejectedAt = cloneTime(r.RejectedAt)
	return &out
}

// apply mutates r to reflect a successful status change.
func (r *Record) apply(change StatusChange) {
	at := change.At.UTC()
	r.Status = change.Next
	r.UpdatedAt = at
	if change.VerifierID != "" {
		r.VerifierID = change.VerifierID
	}
	switch change.Next {
	case enums.RedemptionStatusVerified:
		r.VerifiedAt = &at
	case enums.RedemptionStatusCollected:
		r.CollectedAt = &at
	case enums.RedemptionStatusRejected:
		r.RejectedAt = &at
		r.RejectionReason = change.Reason
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
