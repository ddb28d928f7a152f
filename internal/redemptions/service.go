package redemptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/edurewards/edurewards-backend/pkg/errors"
	"github.com/edurewards/edurewards-backend/pkg/logger"
	"github.com/edurewards/edurewards-backend/pkg/pagination"
)

// DefaultMaxGenerationAttempts bounds how often Issue regenerates identifiers after a collision.
const DefaultMaxGenerationAttempts = 5

// Service is the redemption use-case surface shared by the HTTP API and the CLI.
type Service interface {
	Issue(ctx context.Context, input BuildInput) (*Issued, error)
	Get(ctx context.Context, id string) (*View, error)
	ListByStudent(ctx context.Context, params ListParams) (*ListResult, error)
	Payload(ctx context.Context, id string) (string, error)
	Decode(raw string) DecodeResult
	Verify(ctx context.Context, req VerifyRequest) (Outcome, error)
}

// ListParams configures a page of a student's history.
type ListParams struct {
	StudentID string
	Limit     int
	Cursor    string
}

// ListResult is one page of views plus the cursor for the next one.
type ListResult struct {
	Items  []View
	Cursor string
}

// ServiceParams wires the redemption service.
type ServiceParams struct {
	Store                 Store
	Generator             TokenGenerator
	ExpiryDays            int
	MaxGenerationAttempts int
	StoreTimeout          time.Duration
	Now                   func() time.Time
	Logger                *logger.Logger
	Metrics               MetricsRecorder
}

type service struct {
	store       Store
	builder     *Builder
	engine      *Engine
	maxAttempts int
	timeout     time.Duration
	now         func() time.Time
	logg        *logger.Logger
	metrics     MetricsRecorder
}

// NewService wires the builder and engine around a single store.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "redemption store required")
	}
	if params.Generator == nil {
		params.Generator = NewGenerator()
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
	if params.MaxGenerationAttempts <= 0 {
		params.MaxGenerationAttempts = DefaultMaxGenerationAttempts
	}
	if params.StoreTimeout <= 0 {
		params.StoreTimeout = DefaultStoreTimeout
	}

	builder, err := NewBuilder(params.Generator, params.Now, params.ExpiryDays)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(EngineParams{
		Store:   params.Store,
		Timeout: params.StoreTimeout,
		Now:     params.Now,
		Logger:  params.Logger,
		Metrics: params.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return &service{
		store:       params.Store,
		builder:     builder,
		engine:      engine,
		maxAttempts: params.MaxGenerationAttempts,
		timeout:     params.StoreTimeout,
		now:         params.Now,
		logg:        params.Logger,
		metrics:     params.Metrics,
	}, nil
}

func (s *service) Issue(ctx context.Context, input BuildInput) (*Issued, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		record, err := s.builder.Build(input)
		if err != nil {
			return nil, err
		}

		err = callStore(ctx, s.timeout, s.metrics, "put", func(ctx context.Context) error {
			return s.store.Put(ctx, record)
		})
		if errors.Is(err, ErrCollision) {
			s.metrics.IncCollision()
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "redemption.generation_collision")
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "store redemption")
		}

		payload, err := EncodePayload(record)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payload")
		}
		s.metrics.IncIssued()
		ctx = s.logg.WithRedemptionID(s.logg.WithStudentID(ctx, record.StudentID), record.ID)
		s.logg.Info(ctx, "redemption.issued")
		return &Issued{Record: record.Clone(), Payload: payload}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeGenerationExhausted,
		fmt.Sprintf("no unique redemption code after %d attempts", s.maxAttempts))
}

func (s *service) Get(ctx context.Context, id string) (*View, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{Record: record, EffectiveStatus: record.EffectiveStatus(s.now())}, nil
}

func (s *service) ListByStudent(ctx context.Context, params ListParams) (*ListResult, error) {
	studentID := strings.TrimSpace(params.StudentID)
	if studentID == "" {
		return nil, validationError("student_id", "student id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	var records []Record
	err = callStore(ctx, s.timeout, s.metrics, "list", func(ctx context.Context) error {
		var listErr error
		records, listErr = s.store.ListByStudent(ctx, studentID)
		return listErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list redemptions")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	now := s.now()
	result := &ListResult{Items: make([]View, 0, limit)}
	for i := range records {
		record := records[i]
		if cursor != nil && !cursor.Precedes(record.CreatedAt(), parseRecordID(record.ID)) {
			continue
		}
		if len(result.Items) == limit {
			last := result.Items[limit-1].Record
			result.Cursor = pagination.EncodeCursor(pagination.Cursor{
				CreatedAt: last.CreatedAt(),
				ID:        parseRecordID(last.ID),
			})
			break
		}
		result.Items = append(result.Items, View{Record: &record, EffectiveStatus: record.EffectiveStatus(now)})
	}
	return result, nil
}

func (s *service) Payload(ctx context.Context, id string) (string, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	payload, err := EncodePayload(record)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payload")
	}
	return payload, nil
}

func (s *service) Decode(raw string) DecodeResult {
	return DecodePayload(raw, s.now())
}

func (s *service) Verify(ctx context.Context, req VerifyRequest) (Outcome, error) {
	return s.engine.Verify(ctx, req)
}

func (s *service) load(ctx context.Context, id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, validationError("redemption_id", "redemption id is required")
	}
	var record *Record
	err := callStore(ctx, s.timeout, s.metrics, "get", func(ctx context.Context) error {
		var getErr error
		record, getErr = s.store.Get(ctx, id)
		return getErr
	})
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "redemption not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load redemption")
	}
	return record, nil
}

// parseRecordID maps non-uuid ids (imported legacy records) to uuid.Nil so they still sort.
func parseRecordID(id string) uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
