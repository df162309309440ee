package recordstore

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/winnowbot/winnow/status"
)

type MemRecordStore struct {
	lk      sync.RWMutex
	records map[string]*status.Record
}

var _ RecordStore = (*MemRecordStore)(nil)

func NewMemRecordStore() *MemRecordStore {
	return &MemRecordStore{
		records: make(map[string]*status.Record),
	}
}

func (s *MemRecordStore) Get(ctx context.Context, account string) (*status.Record, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	rec, ok := s.records[account]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *MemRecordStore) Put(ctx context.Context, rec *status.Record) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	cp := *rec
	s.records[rec.Account] = &cp
	return nil
}

func (s *MemRecordStore) Delete(ctx context.Context, account string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.records, account)
	return nil
}

// sorted by LastUpdate descending
func (s *MemRecordStore) sortedAccounts() []*status.Record {
	out := make([]*status.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdate.Equal(out[j].LastUpdate) {
			return out[i].Account < out[j].Account
		}
		return out[i].LastUpdate.After(out[j].LastUpdate)
	})
	return out
}

func (s *MemRecordStore) Recent(ctx context.Context, n int) ([]string, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	var names []string
	for _, rec := range s.sortedAccounts() {
		if len(names) >= n {
			break
		}
		names = append(names, rec.Account)
	}
	return names, nil
}

func (s *MemRecordStore) Scan(ctx context.Context, cursor string, limit int) ([]*status.Record, string, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", err
		}
		offset = n
	}
	all := s.sortedAccounts()
	if offset >= len(all) {
		return nil, "", nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]*status.Record, 0, end-offset)
	for _, rec := range all[offset:end] {
		cp := *rec
		out = append(out, &cp)
	}
	next := ""
	if end < len(all) {
		next = strconv.Itoa(end)
	}
	return out, next, nil
}

func (s *MemRecordStore) Count(ctx context.Context) (int64, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return int64(len(s.records)), nil
}
