package redemptions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edurewards/edurewards-backend/pkg/enums"
)

// runStoreContract exercises the behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("put and get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		record := contractRecord("student-a", "EDU-PUT-0001", time.Now())

		require.NoError(t, store.Put(ctx, record))

		byID, err := store.Get(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.RedemptionCode, byID.RedemptionCode)
		assert.Equal(t, record.OneTimeToken, byID.OneTimeToken)
		assert.Equal(t, record.Timestamp, byID.Timestamp)
		assert.Equal(t, record.ExpiryDate, byID.ExpiryDate)
		assert.Equal(t, enums.RedemptionStatusPending, byID.Status)

		byCode, err := store.GetByCode(ctx, record.RedemptionCode)
		require.NoError(t, err)
		assert.Equal(t, record.ID, byCode.ID)
	})

	t.Run("missing records", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.GetByCode(ctx, "EDU-NOP-0000")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.CompareAndSetStatus(ctx, StatusChange{
			ID:       uuid.NewString(),
			Expected: enums.RedemptionStatusPending,
			Next:     enums.RedemptionStatusVerified,
			At:       time.Now(),
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate code or token collides", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		first := contractRecord("student-a", "EDU-DUP-0001", time.Now())
		require.NoError(t, store.Put(ctx, first))

		sameCode := contractRecord("student-b", "EDU-DUP-0001", time.Now())
		assert.ErrorIs(t, store.Put(ctx, sameCode), ErrCollision)

		sameToken := contractRecord("student-b", "EDU-DUP-0002", time.Now())
		sameToken.OneTimeToken = first.OneTimeToken
		assert.ErrorIs(t, store.Put(ctx, sameToken), ErrCollision)

		// a failed put must not leave reservations behind
		fresh := contractRecord("student-b", "EDU-DUP-0002", time.Now())
		require.NoError(t, store.Put(ctx, fresh))
	})

	t.Run("compare and set", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		record := contractRecord("student-a", "EDU-CAS-0001", time.Now())
		require.NoError(t, store.Put(ctx, record))

		at := time.Now().UTC().Truncate(time.Millisecond)
		ok, err := store.CompareAndSetStatus(ctx, StatusChange{
			ID:         record.ID,
			Expected:   enums.RedemptionStatusPending,
			Next:       enums.RedemptionStatusVerified,
			VerifierID: "teacher-1",
			At:         at,
		})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.CompareAndSetStatus(ctx, StatusChange{
			ID:       record.ID,
			Expected: enums.RedemptionStatusPending,
			Next:     enums.RedemptionStatusRejected,
			Reason:   "stale",
			At:       at,
		})
		require.NoError(t, err)
		assert.False(t, ok, "stale expected status must not apply")

		stored, err := store.Get(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.RedemptionStatusVerified, stored.Status)
		assert.Equal(t, "teacher-1", stored.VerifierID)
		require.NotNil(t, stored.VerifiedAt)
		assert.True(t, stored.VerifiedAt.Equal(at))
		assert.Empty(t, stored.RejectionReason)
	})

	t.Run("concurrent compare and set has one winner", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		record := contractRecord("student-a", "EDU-RCE-0001", time.Now())
		record.Status = enums.RedemptionStatusVerified
		require.NoError(t, store.Put(ctx, record))

		const workers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.CompareAndSetStatus(ctx, StatusChange{
					ID:       record.ID,
					Expected: enums.RedemptionStatusVerified,
					Next:     enums.RedemptionStatusCollected,
					At:       time.Now(),
				})
				if err != nil {
					t.Errorf("cas: %v", err)
					return
				}
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("list by student newest first", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		older := contractRecord("student-a", "EDU-LST-0001", base)
		newer := contractRecord("student-a", "EDU-LST-0002", base.Add(time.Hour))
		other := contractRecord("student-b", "EDU-LST-0003", base)
		for _, r := range []*Record{older, newer, other} {
			require.NoError(t, store.Put(ctx, r))
		}

		records, err := store.ListByStudent(ctx, "student-a")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, newer.ID, records[0].ID)
		assert.Equal(t, older.ID, records[1].ID)

		empty, err := store.ListByStudent(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func contractRecord(student, code string, created time.Time) *Record {
	ts := created.UnixMilli()
	return &Record{
		ID:             uuid.NewString(),
		StudentID:      student,
		ProductID:      "product-1",
		ProductName:    "Bookmark",
		CoinsRedeemed:  10,
		Timestamp:      ts,
		ExpiryDate:     ts + (7 * 24 * time.Hour).Milliseconds(),
		OneTimeToken:   "tok-" + uuid.NewString(),
		RedemptionCode: code,
		Status:         enums.RedemptionStatusPending,
		UpdatedAt:      created.UTC(),
	}
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStoreHonoursCancellation(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Get(ctx, "x")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	record := contractRecord("student-a", "EDU-CPY-0001", time.Now())
	require.NoError(t, store.Put(ctx, record))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	got.Status = enums.RedemptionStatusCollected

	again, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RedemptionStatusPending, again.Status)
}
