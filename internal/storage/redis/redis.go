package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aangilam/aangilam/internal/config"
	"github.com/aangilam/aangilam/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis.
type Store struct {
	client     *redis.Client
	usageStore *usageStore
}

// Open creates a new Redis-backed storage instance.
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:     client,
		usageStore: &usageStore{client: client},
	}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Usage returns the UsageStore implementation.
func (s *Store) Usage() storage.UsageStore {
	return s.usageStore
}

type usageStore struct {
	client *redis.Client
}

// LoadUsage reads the whole usage blob from the fixed key. A missing key
// loads as an empty map.
func (s *usageStore) LoadUsage(ctx context.Context) (storage.UsageData, error) {
	data := make(storage.UsageData)

	raw, err := s.client.Get(ctx, storage.UsageKey).Bytes()
	if err == redis.Nil {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load usage blob: %w", err)
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal usage blob: %w", err)
	}
	return data, nil
}

// SaveUsage replaces the stored blob wholesale.
func (s *usageStore) SaveUsage(ctx context.Context, data storage.UsageData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal usage blob: %w", err)
	}
	if err := s.client.Set(ctx, storage.UsageKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("save usage blob: %w", err)
	}
	return nil
}
