package redemptions

import (
	"context"
	"errors"
	"time"

	"github.com/edurewards/edurewards-backend/pkg/enums"
)

var (
	// ErrNotFound is returned by a Store when no record matches the lookup.
	ErrNotFound = errors.New("redemption not found")
	// ErrCollision is returned by Put when the id, code, or token is already taken.
	ErrCollision = errors.New("redemption identifier collision")
)

// StatusChange describes a compare-and-set on a record's status.
type StatusChange struct {
	ID         string
	Expected   enums.RedemptionStatus
	Next       enums.RedemptionStatus
	VerifierID string
	Reason     string
	At         time.Time
}

// Store is durable keyed storage of redemption records. CompareAndSetStatus is the only
// way a record's status may change; it must apply fully or not at all.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	GetByCode(ctx context.Context, code string) (*Record, error)
	Put(ctx context.Context, record *Record) error
	// CompareAndSetStatus reports false when the stored status no longer equals
	// change.Expected. It returns ErrNotFound for unknown ids.
	CompareAndSetStatus(ctx context.Context, change StatusChange) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]Record, error)
}
