package countstore

import (
	"context"
	"sync"

	"github.com/winnowbot/winnow/status"
)

type MemCountStore struct {
	lk     sync.Mutex
	counts map[status.Status]int64
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		counts: make(map[status.Status]int64),
	}
}

func (s *MemCountStore) Get(ctx context.Context, st status.Status) (int64, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.counts[st], nil
}

func (s *MemCountStore) IncrementBy(ctx context.Context, st status.Status, delta int64) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.counts[st] += delta
	return nil
}

func (s *MemCountStore) Set(ctx context.Context, st status.Status, val int64) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.counts[st] = val
	return nil
}

func (s *MemCountStore) All(ctx context.Context) (map[status.Status]int64, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	out := make(map[status.Status]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out, nil
}
