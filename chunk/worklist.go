package chunk

import (
	"context"
	"sort"
	"sync"
)

// Item is one worklist entry. Score orders the list: due-time (unix seconds)
// for scheduled work, or priority for ranked work. Lowest score first.
type Item struct {
	Member string
	Score  float64
}

// Worklist is a persisted ordered queue. Implementations must make Remove
// idempotent: removing an absent member is not an error, which is what lets
// racing invocations coexist without locks.
type Worklist interface {
	Add(ctx context.Context, items ...Item) error
	// Front returns up to n items, lowest score first.
	Front(ctx context.Context, n int) ([]Item, error)
	Remove(ctx context.Context, members ...string) error
	Len(ctx context.Context) (int64, error)
}

type MemWorklist struct {
	lk    sync.Mutex
	items map[string]float64
}

var _ Worklist = (*MemWorklist)(nil)

func NewMemWorklist() *MemWorklist {
	return &MemWorklist{items: make(map[string]float64)}
}

func (w *MemWorklist) Add(ctx context.Context, items ...Item) error {
	w.lk.Lock()
	defer w.lk.Unlock()
	for _, it := range items {
		w.items[it.Member] = it.Score
	}
	return nil
}

func (w *MemWorklist) Front(ctx context.Context, n int) ([]Item, error) {
	w.lk.Lock()
	defer w.lk.Unlock()
	all := make([]Item, 0, len(w.items))
	for m, s := range w.items {
		all = append(all, Item{Member: m, Score: s})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score == all[j].Score {
			return all[i].Member < all[j].Member
		}
		return all[i].Score < all[j].Score
	})
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (w *MemWorklist) Remove(ctx context.Context, members ...string) error {
	w.lk.Lock()
	defer w.lk.Unlock()
	for _, m := range members {
		delete(w.items, m)
	}
	return nil
}

func (w *MemWorklist) Len(ctx context.Context) (int64, error) {
	w.lk.Lock()
	defer w.lk.Unlock()
	return int64(len(w.items)), nil
}
