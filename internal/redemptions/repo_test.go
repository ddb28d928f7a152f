package redemptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/edurewards/edurewards-backend/pkg/db/models"
	"github.com/edurewards/edurewards-backend/pkg/enums"
)

func setupRedemptionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:redemptions_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Redemption{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRepositoryContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewRepository(setupRedemptionsTestDB(t))
	})
}

func TestRepositoryPersistsRejectionAudit(t *testing.T) {
	db := setupRedemptionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	record := contractRecord("student-a", "EDU-AUD-0001", time.Now())
	require.NoError(t, repo.Put(ctx, record))

	ok, err := repo.CompareAndSetStatus(ctx, StatusChange{
		ID:         record.ID,
		Expected:   enums.RedemptionStatusPending,
		Next:       enums.RedemptionStatusRejected,
		VerifierID: "teacher-9",
		Reason:     "student absent",
		At:         time.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)

	var row models.Redemption
	require.NoError(t, db.Where("id = ?", uuid.MustParse(record.ID)).First(&row).Error)
	require.Equal(t, enums.RedemptionStatusRejected, row.Status)
	require.NotNil(t, row.RejectionReason)
	require.Equal(t, "student absent", *row.RejectionReason)
	require.NotNil(t, row.VerifierID)
	require.Equal(t, "teacher-9", *row.VerifierID)
	require.NotNil(t, row.RejectedAt)
}

func TestRepositoryRejectsNonUUIDIDs(t *testing.T) {
	repo := NewRepository(setupRedemptionsTestDB(t))
	record := contractRecord("student-a", "EDU-UID-0001", time.Now())
	record.ID = "not-a-uuid"
	require.Error(t, repo.Put(context.Background(), record))

	_, err := repo.Get(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEngineOverRepositoryConcurrentCollect(t *testing.T) {
	repo := NewRepository(setupRedemptionsTestDB(t))
	clk := &clock{now: time.Now()}
	svc, err := NewService(ServiceParams{Store: repo, Now: clk.Now})
	require.NoError(t, err)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, BuildInput{StudentID: "s", ProductID: "p", ProductName: "Pen", CoinsRedeemed: 5})
	require.NoError(t, err)
	outcome, err := svc.Verify(ctx, VerifyRequest{Payload: issued.Payload})
	require.NoError(t, err)
	require.Equal(t, OutcomeVerified, outcome.Kind)

	results := make(chan OutcomeKind, 2)
	for i := 0; i < 2; i++ {
		go func() {
			outcome, err := svc.Verify(ctx, VerifyRequest{Payload: issued.Payload, Intent: enums.VerificationIntentCollect})
			if err != nil {
				results <- ""
				return
			}
			results <- outcome.Kind
		}()
	}
	kinds := map[OutcomeKind]int{}
	for i := 0; i < 2; i++ {
		kinds[<-results]++
	}
	require.Equal(t, 1, kinds[OutcomeCollected])
	require.Equal(t, 1, kinds[OutcomeAlreadyFinalized])
}
