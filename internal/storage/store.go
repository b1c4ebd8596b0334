package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// UsageKey is the fixed key the usage blob is stored under. The name matches
// the key used by the original browser client so existing exported data can
// be imported as-is.
const UsageKey = "aangilam_usage_data"

// Store represents the root storage interface.
type Store interface {
	Close() error
	Usage() UsageStore
}

// UsageStore persists the usage blob as a whole. Every mutation in the
// tracker is a scoped read-modify-write: load the full map, change it in
// memory, save the full map back. Partial writes are never exposed.
type UsageStore interface {
	// LoadUsage returns the entire usage map. A missing blob is not an
	// error; it loads as an empty map.
	LoadUsage(ctx context.Context) (UsageData, error)

	// SaveUsage replaces the stored blob wholesale.
	SaveUsage(ctx context.Context, data UsageData) error
}
