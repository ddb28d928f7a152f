package redemptions

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in process. Used by tests and the CLI dry-run mode.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Record
	byCode map[string]string
	tokens map[string]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   map[string]*Record{},
		byCode: map[string]string{},
		tokens: map[string]struct{}{},
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

func (s *MemoryStore) GetByCode(ctx context.Context, code string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[record.ID]; ok {
		return ErrCollision
	}
	if _, ok := s.byCode[record.RedemptionCode]; ok {
		return ErrCollision
	}
	if _, ok := s.tokens[record.OneTimeToken]; ok {
		return ErrCollision
	}
	s.byID[record.ID] = record.Clone()
	s.byCode[record.RedemptionCode] = record.ID
	s.tokens[record.OneTimeToken] = struct{}{}
	return nil
}

func (s *MemoryStore) CompareAndSetStatus(ctx context.Context, change StatusChange) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.byID[change.ID]
	if !ok {
		return false, ErrNotFound
	}
	if record.Status != change.Expected {
		return false, nil
	}
	record.apply(change)
	return true, nil
}

// ListByStudent returns the student's records, newest first.
func (s *MemoryStore) ListByStudent(ctx context.Context, studentID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0)
	for _, record := range s.byID {
		if record.StudentID == studentID {
			out = append(out, *record.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp == out[j].Timestamp {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp > out[j].Timestamp
	})
	return out, nil
}
