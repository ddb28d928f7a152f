package redemptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edurewards/edurewards-backend/pkg/db"
	"github.com/edurewards/edurewards-backend/pkg/db/models"
	"github.com/edurewards/edurewards-backend/pkg/enums"
)

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a Store bound to the provided database.
func NewRepository(conn *gorm.DB) Store {
	return &repositoryImpl{db: conn}
}

func (r *repositoryImpl) Get(ctx context.Context, id string) (*Record, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var row models.Redemption
	if err := r.db.WithContext(ctx).Where("id = ?", parsed).First(&row).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return recordFromModel(&row), nil
}

func (r *repositoryImpl) GetByCode(ctx context.Context, code string) (*Record, error) {
	var row models.Redemption
	if err := r.db.WithContext(ctx).Where("redemption_code = ?", code).First(&row).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return recordFromModel(&row), nil
}

func (r *repositoryImpl) Put(ctx context.Context, record *Record) error {
	row, err := modelFromRecord(record)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrCollision
		}
		return err
	}
	return nil
}

func (r *repositoryImpl) CompareAndSetStatus(ctx context.Context, change StatusChange) (bool, error) {
	parsed, err := uuid.Parse(change.ID)
	if err != nil {
		return false, ErrNotFound
	}

	at := change.At.UTC()
	updates := map[string]any{
		"status":     change.Next,
		"updated_at": at,
	}
	if change.VerifierID != "" {
		updates["verifier_id"] = change.VerifierID
	}
	switch change.Next {
	case enums.RedemptionStatusVerified:
		updates["verified_at"] = at
	case enums.RedemptionStatusCollected:
		updates["collected_at"] = at
	case enums.RedemptionStatusRejected:
		updates["rejected_at"] = at
		updates["rejection_reason"] = change.Reason
	}

	result := r.db.WithContext(ctx).
		Model(&models.Redemption{}).
		Where("id = ? AND status = ?", parsed, change.Expected).
		UpdateColumns(updates)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Redemption{}).
		Where("id = ?", parsed).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// ListByStudent returns the student's records, newest first.
func (r *repositoryImpl) ListByStudent(ctx context.Context, studentID string) ([]Record, error) {
	var rows []models.Redemption
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("timestamp_ms DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for i := range rows {
		out = append(out, *recordFromModel(&rows[i]))
	}
	return out, nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func modelFromRecord(record *Record) (*models.Redemption, error) {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return nil, fmt.Errorf("redemption id %q is not a uuid: %w", record.ID, err)
	}
	return &models.Redemption{
		ID:              id,
		StudentID:       record.StudentID,
		ProductID:       record.ProductID,
		ProductName:     record.ProductName,
		CoinsRedeemed:   record.CoinsRedeemed,
		Timestamp:       record.Timestamp,
		ExpiryDate:      record.ExpiryDate,
		OneTimeToken:    record.OneTimeToken,
		RedemptionCode:  record.RedemptionCode,
		Status:          record.Status,
		VerifierID:      optionalString(record.VerifierID),
		RejectionReason: optionalString(record.RejectionReason),
		VerifiedAt:      cloneTime(record.VerifiedAt),
		CollectedAt:     cloneTime(record.CollectedAt),
		RejectedAt:      cloneTime(record.RejectedAt),
		CreatedAt:       record.CreatedAt(),
		UpdatedAt:       record.UpdatedAt,
	}, nil
}

func recordFromModel(row *models.Redemption) *Record {
	record := &Record{
		ID:             row.ID.String(),
		StudentID:      row.StudentID,
		ProductID:      row.ProductID,
		ProductName:    row.ProductName,
		CoinsRedeemed:  row.CoinsRedeemed,
		Timestamp:      row.Timestamp,
		ExpiryDate:     row.ExpiryDate,
		OneTimeToken:   row.OneTimeToken,
		RedemptionCode: row.RedemptionCode,
		Status:         row.Status,
		VerifiedAt:     row.VerifiedAt,
		CollectedAt:    row.CollectedAt,
		RejectedAt:     row.RejectedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.VerifierID != nil {
		record.VerifierID = *row.VerifierID
	}
	if row.RejectionReason != nil {
		record.RejectionReason = *row.RejectionReason
	}
	return record
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
