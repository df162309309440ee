// Package countstore maintains the aggregate classification counters: one
// integer per status value, adjusted by exactly one increment/decrement pair
// per status transition. Counters are never recomputed by scanning in the hot
// path; a periodic reconciliation sweep verifies them against the record store.
package countstore

import (
	"context"

	"github.com/winnowbot/winnow/status"
)

type CountStore interface {
	Get(ctx context.Context, s status.Status) (int64, error)
	IncrementBy(ctx context.Context, s status.Status, delta int64) error
	All(ctx context.Context) (map[status.Status]int64, error)
	// Set overwrites one counter. Only the reconciliation sweep calls this.
	Set(ctx context.Context, s status.Status, val int64) error
}
