package redemptions

import (
	"fmt"

	"github.com/edurewards/edurewards-backend/pkg/enums"
	pkgerrors "github.com/edurewards/edurewards-backend/pkg/errors"
)

// OutcomeKind classifies the result of a verification attempt.
type OutcomeKind string

const (
	OutcomeVerified         OutcomeKind = "verified"
	OutcomeCollected        OutcomeKind = "collected"
	OutcomeRejected         OutcomeKind = "rejected"
	OutcomeExpired          OutcomeKind = "expired"
	OutcomeInvalid          OutcomeKind = "invalid"
	OutcomeNotFound         OutcomeKind = "not_found"
	OutcomeAlreadyFinalized OutcomeKind = "already_finalized"
	OutcomeStateConflict    OutcomeKind = "state_conflict"
	OutcomePendingRetry     OutcomeKind = "pending_retry"
)

// VerifyRequest is what a verifier presents. Payload is the scanned string; Code is the
// typed fallback used when scanning fails. Payload wins when both are set.
type VerifyRequest struct {
	Payload    string
	Code       string
	Intent     enums.VerificationIntent
	Reason     string
	VerifierID string
}

// Outcome is the typed result of Verify. Record is a read-only copy and is nil when
// the record could not be loaded.
type Outcome struct {
	Kind     OutcomeKind
	Intent   enums.VerificationIntent
	Status   enums.RedemptionStatus
	Record   *Record
	Message  string
	Replayed bool
}

// Succeeded reports whether the attempt applied (or had already applied) the intent.
func (o Outcome) Succeeded() bool {
	switch o.Kind {
	case OutcomeVerified, OutcomeCollected, OutcomeRejected:
		return true
	}
	return false
}

// Err converts a non-successful outcome into the matching typed error.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeVerified, OutcomeCollected, OutcomeRejected:
		return nil
	case OutcomeInvalid:
		return pkgerrors.New(pkgerrors.CodeDecode, o.Message).WithDetails(map[string]any{"reason": o.Message})
	case OutcomeExpired:
		return pkgerrors.New(pkgerrors.CodeExpired, DecodeErrExpired).WithDetails(map[string]any{"status": enums.RedemptionStatusExpired})
	case OutcomeNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "redemption not found")
	case OutcomeAlreadyFinalized:
		return pkgerrors.New(pkgerrors.CodeAlreadyFinalized, fmt.Sprintf("redemption already %s", o.Status)).
			WithDetails(map[string]any{"status": o.Status})
	case OutcomeStateConflict:
		return pkgerrors.New(pkgerrors.CodeStateConflict, o.Message).WithDetails(map[string]any{"status": o.Status, "intent": o.Intent})
	case OutcomePendingRetry:
		return pkgerrors.New(pkgerrors.CodeStoreUnavailable, "verification pending retry").WithDetails(map[string]any{"retryable": true})
	}
	return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown verification outcome %q", o.Kind))
}

// Issued is a freshly stored record together with its scannable payload.
type Issued struct {
	Record  *Record
	Payload string
}

// View is a read-only record paired with the status a reader should observe now.
type View struct {
	Record          *Record
	EffectiveStatus enums.RedemptionStatus
}
