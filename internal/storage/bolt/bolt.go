package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aangilam/aangilam/internal/storage"
	"go.etcd.io/bbolt"
)

const bucketUsage = "usage"

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketUsage)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketUsage, err)
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Usage returns the usage store.
func (s *Store) Usage() storage.UsageStore { return &usageStore{db: s.db} }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

type usageStore struct {
	db *bbolt.DB
}

// LoadUsage reads the whole usage blob. An absent key loads as an empty map
// so a fresh database behaves like "no usage recorded yet".
func (s *usageStore) LoadUsage(ctx context.Context) (storage.UsageData, error) {
	data := make(storage.UsageData)
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketUsage))
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(storage.UsageKey))
		if raw == nil {
			return nil
		}
		return unmarshal(raw, &data)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SaveUsage replaces the stored blob wholesale.
func (s *usageStore) SaveUsage(ctx context.Context, data storage.UsageData) error {
	raw, err := marshal(data)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketUsage))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucketUsage)
		}
		return b.Put([]byte(storage.UsageKey), raw)
	})
}
