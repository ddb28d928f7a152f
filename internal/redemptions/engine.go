package redemptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edurewards/edurewards-backend/pkg/enums"
	pkgerrors "github.com/edurewards/edurewards-backend/pkg/errors"
	"github.com/edurewards/edurewards-backend/pkg/logger"
)

const (
	// DefaultStoreTimeout bounds every store round-trip made on behalf of a caller.
	DefaultStoreTimeout = 3 * time.Second

	maxTransitionAttempts = 3
)

const (
	msgPayloadMismatch = "Payload mismatch"
	msgTokenMismatch   = "Token mismatch"
)

// MetricsRecorder is the subset of the redemption metrics used by this package.
type MetricsRecorder interface {
	IncIssued()
	IncCollision()
	IncOutcome(intent, outcome string)
	ObserveStore(op string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) IncIssued() {}
func (nopMetrics) IncCollision() {}
func (nopMetrics) IncOutcome(string, string) {}
func (nopMetrics) ObserveStore(string, time.Duration) {}

// EngineParams wires the verification engine.
type EngineParams struct {
	Store   Store
	Timeout time.Duration
	Now     func() time.Time
	Logger  *logger.Logger
	Metrics MetricsRecorder
}

// Engine decides whether a presented redemption is acceptable and applies the
// resulting status transition through the store's compare-and-set.
type Engine struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	logg    *logger.Logger
	metrics MetricsRecorder
}

// NewEngine validates params and applies defaults.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("redemption store required")
	}
	if params.Timeout <= 0 {
		params.Timeout = DefaultStoreTimeout
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Metrics == nil {
		params.Metrics = nopMetrics{}
	}
	return &Engine{
		store:   params.Store,
		timeout: params.Timeout,
		now:     params.Now,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Verify evaluates req and performs at most one status transition. The returned error
// is reserved for malformed requests; every business or connectivity result is an Outcome.
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) (Outcome, error) {
	intent := req.Intent
	if intent == "" {
		intent = enums.VerificationIntentAccept
	}
	if !intent.IsValid() {
		return Outcome{}, validationError("intent", fmt.Sprintf("unsupported intent %q", req.Intent))
	}
	reason := strings.TrimSpace(req.Reason)
	if intent == enums.VerificationIntentReject && reason == "" {
		return Outcome{}, validationError("reason", "a reason is required to reject a redemption")
	}

	rawPayload := strings.TrimSpace(req.Payload)
	code := NormalizeCode(req.Code)
	if rawPayload == "" && code == "" {
		return Outcome{}, validationError("payload", "payload or code is required")
	}

	outcome := e.verify(ctx, intent, reason, rawPayload, code, strings.TrimSpace(req.VerifierID))
	outcome.Intent = intent
	e.metrics.IncOutcome(intent.String(), string(outcome.Kind))
	return outcome, nil
}

func (e *Engine) verify(ctx context.Context, intent enums.VerificationIntent, reason, rawPayload, code, verifierID string) Outcome {
	var payload *Payload
	if rawPayload != "" {
		decoded := DecodePayload(rawPayload, e.now())
		if !decoded.Valid {
			if decoded.Error == DecodeErrExpired {
				return Outcome{Kind: OutcomeExpired, Status: enums.RedemptionStatusExpired, Message: DecodeErrExpired}
			}
			return Outcome{Kind: OutcomeInvalid, Message: decoded.Error}
		}
		payload = decoded.Data
	} else if !IsValidCode(code) {
		return Outcome{Kind: OutcomeInvalid, Message: DecodeErrInvalidFormat}
	}

	record, err := e.lookup(ctx, payload, code)
	if err != nil {
		return e.storeFailure(ctx, "lookup", err)
	}
	ctx = e.logg.WithRedemptionID(ctx, record.ID)

	if payload != nil {
		if msg := crossCheck(payload, record); msg != "" {
			e.logg.Warn(ctx, "redemption.payload_mismatch")
			return Outcome{Kind: OutcomeInvalid, Message: msg}
		}
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		outcome, change, apply := e.decide(intent, reason, verifierID, record)
		if !apply {
			return outcome
		}

		var ok bool
		err := e.callStore(ctx, "cas", func(ctx context.Context) error {
			var casErr error
			ok, casErr = e.store.CompareAndSetStatus(ctx, change)
			return casErr
		})
		if err != nil {
			return e.storeFailure(ctx, "cas", err)
		}
		if ok {
			updated := record.Clone()
			updated.apply(change)
			e.logg.Info(e.logg.WithFields(ctx, map[string]any{
				"from":        change.Expected,
				"to":          change.Next,
				"intent":      intent,
				"verifier_id": verifierID,
			}), "redemption.transition")
			outcome.Record = updated
			return outcome
		}

		// Lost the race; classify against what the winner left behind.
		err = e.callStore(ctx, "get", func(ctx context.Context) error {
			var getErr error
			record, getErr = e.store.Get(ctx, record.ID)
			return getErr
		})
		if err != nil {
			return e.storeFailure(ctx, "reload", err)
		}
	}

	return Outcome{
		Kind:    OutcomeStateConflict,
		Status:  record.Status,
		Record:  record,
		Message: "redemption status kept changing; retry",
	}
}

// decide returns the outcome for record and, when a transition is required, the change
// to apply. The returned outcome is only final when apply is false.
func (e *Engine) decide(intent enums.VerificationIntent, reason, verifierID string, record *Record) (Outcome, StatusChange, bool) {
	now := e.now()
	if record.Status.IsTerminal() {
		return Outcome{Kind: OutcomeAlreadyFinalized, Status: record.Status, Record: record}, StatusChange{}, false
	}
	if record.IsExpiredAt(now) {
		return Outcome{Kind: OutcomeExpired, Status: enums.RedemptionStatusExpired, Record: record, Message: DecodeErrExpired}, StatusChange{}, false
	}

	change := StatusChange{
		ID:         record.ID,
		Expected:   record.Status,
		VerifierID: verifierID,
		At:         now,
	}

	switch intent {
	case enums.VerificationIntentAccept:
		if record.Status == enums.RedemptionStatusVerified {
			return Outcome{Kind: OutcomeVerified, Status: record.Status, Record: record, Replayed: true}, StatusChange{}, false
		}
		change.Next = enums.RedemptionStatusVerified
		return Outcome{Kind: OutcomeVerified, Status: change.Next}, change, true
	case enums.VerificationIntentReject:
		change.Next = enums.RedemptionStatusRejected
		change.Reason = reason
		return Outcome{Kind: OutcomeRejected, Status: change.Next}, change, true
	case enums.VerificationIntentCollect:
		if record.Status != enums.RedemptionStatusVerified {
			return Outcome{
				Kind:    OutcomeStateConflict,
				Status:  record.Status,
				Record:  record,
				Message: "redemption must be verified before collection",
			}, StatusChange{}, false
		}
		change.Next = enums.RedemptionStatusCollected
		return Outcome{Kind: OutcomeCollected, Status: change.Next}, change, true
	}
	return Outcome{Kind: OutcomeStateConflict, Status: record.Status, Record: record}, StatusChange{}, false
}

func (e *Engine) lookup(ctx context.Context, payload *Payload, code string) (*Record, error) {
	var record *Record
	err := e.callStore(ctx, "get", func(ctx context.Context) error {
		var err error
		switch {
		case payload != nil && strings.TrimSpace(payload.ID) != "":
			record, err = e.store.Get(ctx, strings.TrimSpace(payload.ID))
		case payload != nil:
			record, err = e.store.GetByCode(ctx, NormalizeCode(payload.RedemptionCode))
		default:
			record, err = e.store.GetByCode(ctx, code)
		}
		return err
	})
	return record, err
}

func (e *Engine) storeFailure(ctx context.Context, op string, err error) Outcome {
	if errors.Is(err, ErrNotFound) {
		return Outcome{Kind: OutcomeNotFound, Message: "redemption not found"}
	}
	e.logg.Warn(e.logg.WithFields(ctx, map[string]any{"op": op, "error": err.Error()}), "redemption.store_unavailable")
	return Outcome{Kind: OutcomePendingRetry, Message: pkgerrors.MetadataFor(pkgerrors.CodeStoreUnavailable).PublicMessage}
}

func (e *Engine) callStore(ctx context.Context, op string, fn func(context.Context) error) error {
	return callStore(ctx, e.timeout, e.metrics, op, fn)
}

// callStore runs fn under a bounded deadline and records its latency.
func callStore(ctx context.Context, timeout time.Duration, metrics MetricsRecorder, op string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	err := fn(callCtx)
	metrics.ObserveStore(op, time.Since(start))
	return err
}

// crossCheck rejects payloads whose identifying fields disagree with the stored record.
func crossCheck(payload *Payload, record *Record) string {
	if payload.ID != "" && payload.ID != record.ID {
		return msgPayloadMismatch
	}
	if payload.StudentID != record.StudentID ||
		payload.ProductID != record.ProductID ||
		NormalizeCode(payload.RedemptionCode) != record.RedemptionCode {
		return msgPayloadMismatch
	}
	if payload.Token != "" && payload.Token != record.OneTimeToken {
		return msgTokenMismatch
	}
	return ""
}
