package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/edurewards/edurewards-backend/pkg/enums"
)

// Redemption is the persisted form of a reward redemption. Timestamp and ExpiryDate are
// epoch milliseconds so they round-trip exactly with the scannable payload.
type Redemption struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	StudentID       string                 `gorm:"column:student_id;not null;index:idx_redemptions_student"`
	ProductID       string                 `gorm:"column:product_id;not null"`
	ProductName     string                 `gorm:"column:product_name;not null"`
	CoinsRedeemed   int64                  `gorm:"column:coins_redeemed;not null"`
	Timestamp       int64                  `gorm:"column:timestamp_ms;not null;index:idx_redemptions_student"`
	ExpiryDate      int64                  `gorm:"column:expiry_ms;not null"`
	OneTimeToken    string                 `gorm:"column:one_time_token;not null;uniqueIndex:uq_redemptions_token"`
	RedemptionCode  string                 `gorm:"column:redemption_code;not null;uniqueIndex:uq_redemptions_code"`
	Status          enums.RedemptionStatus `gorm:"column:status;not null;default:'pending'"`
	VerifierID      *string                `gorm:"column:verifier_id"`
	RejectionReason *string                `gorm:"column:rejection_reason"`
	VerifiedAt      *time.Time             `gorm:"column:verified_at"`
	CollectedAt     *time.Time             `gorm:"column:collected_at"`
	RejectedAt      *time.Time             `gorm:"column:rejected_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table regardless of naming strategy.
func (Redemption) TableName() string {
	return "redemptions"
}
