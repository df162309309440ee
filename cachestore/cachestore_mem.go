package cachestore

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	val     string
	expires time.Time
}

type MemCacheStore struct {
	lk   sync.Mutex
	data map[string]memEntry
	// injectable for tests
	now func() time.Time
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore() *MemCacheStore {
	return &MemCacheStore{
		data: make(map[string]memEntry),
		now:  time.Now,
	}
}

func cacheKey(name, key string) string {
	return name + "/" + key
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	e, ok := s.data[cacheKey(name, key)]
	if !ok {
		return "", nil
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		delete(s.data, cacheKey(name, key))
		return "", nil
	}
	return e.val, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key, val string, ttl time.Duration) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	e := memEntry{val: val}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.data[cacheKey(name, key)] = e
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.data, cacheKey(name, key))
	return nil
}

// SetClock swaps the time source, for expiry tests.
func (s *MemCacheStore) SetClock(now func() time.Time) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.now = now
}
