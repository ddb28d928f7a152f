package redemptions

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edurewards/edurewards-backend/pkg/enums"
	pkgerrors "github.com/edurewards/edurewards-backend/pkg/errors"
)

// DefaultExpiryDays is the validity window used when neither the caller nor configuration set one.
const DefaultExpiryDays = 7

// BuildInput carries the caller-supplied context of a redemption.
type BuildInput struct {
	StudentID     string
	ProductID     string
	ProductName   string
	CoinsRedeemed int64
	// ExpiryDays overrides the builder default when non-nil.
	ExpiryDays *int
}

// Builder assembles complete pending records. It never persists anything.
type Builder struct {
	generator  TokenGenerator
	now        func() time.Time
	expiryDays int
}

// NewBuilder returns a builder; expiryDays <= 0 falls back to DefaultExpiryDays.
func NewBuilder(generator TokenGenerator, now func() time.Time, expiryDays int) (*Builder, error) {
	if generator == nil {
		return nil, fmt.Errorf("token generator required")
	}
	if now == nil {
		now = time.Now
	}
	if expiryDays <= 0 {
		expiryDays = DefaultExpiryDays
	}
	return &Builder{generator: generator, now: now, expiryDays: expiryDays}, nil
}

// Build validates input and returns a new record with status pending.
func (b *Builder) Build(input BuildInput) (*Record, error) {
	studentID := strings.TrimSpace(input.StudentID)
	productID := strings.TrimSpace(input.ProductID)
	productName := strings.TrimSpace(input.ProductName)

	switch {
	case studentID == "":
		return nil, validationError("student_id", "student id is required")
	case productID == "":
		return nil, validationError("product_id", "product id is required")
	case productName == "":
		return nil, validationError("product_name", "product name is required")
	case input.CoinsRedeemed < 0:
		return nil, validationError("coins_redeemed", "coins redeemed must not be negative")
	}

	days := b.expiryDays
	if input.ExpiryDays != nil {
		if *input.ExpiryDays <= 0 {
			return nil, validationError("expiry_days", "expiry days must be positive")
		}
		days = *input.ExpiryDays
	}

	code, err := b.generator.GenerateRedemptionCode()
	if err != nil {
		return nil, fmt.Errorf("generating redemption code: %w", err)
	}
	token, err := b.generator.GenerateOneTimeToken()
	if err != nil {
		return nil, fmt.Errorf("generating one-time token: %w", err)
	}

	created := b.now().UTC()
	ts := created.UnixMilli()
	return &Record{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		ProductID:      productID,
		ProductName:    productName,
		CoinsRedeemed:  input.CoinsRedeemed,
		Timestamp:      ts,
		ExpiryDate:     ts + (time.Duration(days) * 24 * time.Hour).Milliseconds(),
		OneTimeToken:   token,
		RedemptionCode: code,
		Status:         enums.RedemptionStatusPending,
		UpdatedAt:      created,
	}, nil
}

func validationError(field, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"field": field})
}
