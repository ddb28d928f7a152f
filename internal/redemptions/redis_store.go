package redemptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	pkgredis "github.com/edurewards/edurewards-backend/pkg/redis"
)

const (
	// DefaultLockTTL bounds how long a crashed verifier can hold a record lock.
	DefaultLockTTL = 5 * time.Second

	lockScope = "redemption"
)

// RedisStore keeps msgpack-encoded records in redis. Code and token uniqueness are
// enforced with SETNX reservations; status changes run under a per-record mutex and
// an optimistic WATCH so a lock that expired mid-flight still cannot double-apply.
type RedisStore struct {
	keys    *pkgredis.Client
	rdb     *redis.Client
	rs      *redsync.Redsync
	lockTTL time.Duration
}

// NewRedisStore wires a store on top of an initialized redis client.
func NewRedisStore(client *pkgredis.Client, lockTTL time.Duration) (*RedisStore, error) {
	if client == nil || client.Raw() == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &RedisStore{
		keys:    client,
		rdb:     client.Raw(),
		rs:      redsync.New(goredis.NewPool(client.Raw())),
		lockTTL: lockTTL,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, s.keys.RedemptionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

func (s *RedisStore) GetByCode(ctx context.Context, code string) (*Record, error) {
	id, err := s.rdb.Get(ctx, s.keys.RedemptionCodeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) Put(ctx context.Context, record *Record) error {
	encoded, err := msgpack.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding redemption: %w", err)
	}

	reservations := []string{
		s.keys.RedemptionCodeKey(record.RedemptionCode),
		s.keys.RedemptionTokenKey(record.OneTimeToken),
	}
	held := make([]string, 0, len(reservations))
	release := func() {
		if len(held) > 0 {
			_ = s.rdb.Del(context.WithoutCancel(ctx), held...).Err()
		}
	}

	for _, key := range reservations {
		ok, err := s.rdb.SetNX(ctx, key, record.ID, 0).Result()
		if err != nil {
			release()
			return err
		}
		if !ok {
			release()
			return ErrCollision
		}
		held = append(held, key)
	}

	ok, err := s.rdb.SetNX(ctx, s.keys.RedemptionKey(record.ID), encoded, 0).Result()
	if err != nil || !ok {
		release()
		if err != nil {
			return err
		}
		return ErrCollision
	}

	return s.rdb.ZAdd(ctx, s.keys.StudentRedemptionsKey(record.StudentID), redis.Z{
		Score:  float64(record.Timestamp),
		Member: record.ID,
	}).Err()
}

func (s *RedisStore) CompareAndSetStatus(ctx context.Context, change StatusChange) (bool, error) {
	mutex := s.rs.NewMutex(s.keys.LockKey(lockScope, change.ID),
		redsync.WithExpiry(s.lockTTL),
		redsync.WithTries(8),
		redsync.WithRetryDelay(25*time.Millisecond),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return false, fmt.Errorf("locking redemption %s: %w", change.ID, err)
	}
	defer func() {
		_, _ = mutex.UnlockContext(context.WithoutCancel(ctx))
	}()

	key := s.keys.RedemptionKey(change.ID)
	applied := false
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		record, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if record.Status != change.Expected {
			return nil
		}
		record.apply(change)
		encoded, err := msgpack.Marshal(record)
		if err != nil {
			return fmt.Errorf("encoding redemption: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}
		applied = true
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ListByStudent returns the student's records, newest first.
func (s *RedisStore) ListByStudent(ctx context.Context, studentID string) ([]Record, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.keys.StudentRedemptionsKey(studentID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.RedemptionKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(values))
	for _, value := range values {
		str, ok := value.(string)
		if !ok {
			continue
		}
		record, err := decodeRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, nil
}

func decodeRecord(raw []byte) (*Record, error) {
	var record Record
	if err := msgpack.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decoding redemption: %w", err)
	}
	return &record, nil
}
