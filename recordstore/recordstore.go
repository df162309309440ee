// Package recordstore persists classification records, along with a recency
// index used by cleanup and reporting sweeps. There is exactly one record per
// account; all status mutation goes through the engine's transition function,
// this package only stores what it is given.
package recordstore

import (
	"context"
	"errors"

	"github.com/winnowbot/winnow/status"
)

var ErrNotFound = errors.New("classification record not found")

type RecordStore interface {
	// Get returns ErrNotFound for unknown accounts.
	Get(ctx context.Context, account string) (*status.Record, error)
	Put(ctx context.Context, rec *status.Record) error
	// Delete removes the record and its recency-index entry atomically
	// (permanent purge from the authoritative node).
	Delete(ctx context.Context, account string) error
	// Recent returns up to n account names, most recently updated first.
	Recent(ctx context.Context, n int) ([]string, error)
	// Scan pages through all records. Pass cursor "" to start; an empty
	// returned cursor means the scan is complete.
	Scan(ctx context.Context, cursor string, limit int) ([]*status.Record, string, error)
	Count(ctx context.Context) (int64, error)
}
