package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// contextKeySuffix is appended to a key when Save is given a side context
// string, producing the shadow entry.
const contextKeySuffix = "_context"

// StateStore is the concurrency-safe key/value memory shared across steps
// and nodes and across executions. Every mutation is serialized; each call
// blocks the caller until it completes its turn.
type StateStore interface {
	// Save overwrites key with value. A non-empty context string also
	// stores a shadow "<key>_context" entry. Save always succeeds unless
	// the context is done or the backend is unreachable.
	Save(ctx context.Context, key string, value any, contextStr string) error
	// Retrieve returns the value for key. Absence is not an error.
	Retrieve(ctx context.Context, key string) (any, bool, error)
	// Clear removes everything.
	Clear(ctx context.Context) error
}

// MemoryStateStore is a mutex-guarded in-process StateStore. It is the
// default backend and the one used in tests and small deployments.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]any
	logger  *zap.Logger
}

// NewMemoryStateStore creates an empty in-process state store.
func NewMemoryStateStore(logger *zap.Logger) *MemoryStateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStateStore{
		entries: make(map[string]any),
		logger:  logger.With(zap.String("component", "state_store")),
	}
}

// Save implements StateStore.
func (s *MemoryStateStore) Save(ctx context.Context, key string, value any, contextStr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = value
	if contextStr != "" {
		s.entries[key+contextKeySuffix] = contextStr
	}
	s.logger.Debug("state saved", zap.String("key", key))
	return nil
}

// Retrieve implements StateStore. It never fails on absence.
func (s *MemoryStateStore) Retrieve(ctx context.Context, key string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.entries[key]
	return value, ok, nil
}

// Clear implements StateStore.
func (s *MemoryStateStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]any)
	s.logger.Debug("state cleared")
	return nil
}

// Len reports the number of stored entries, shadow entries included.
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisStateStore is a StateStore backed by Redis, for deployments where
// cross-step memory must outlive the process. Values are JSON-encoded.
type RedisStateStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// RedisStateStoreConfig configures a RedisStateStore.
type RedisStateStoreConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	// KeyPrefix namespaces all entries, "flowmesh:state:" by default.
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(cfg RedisStateStoreConfig, logger *zap.Logger) *RedisStateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "flowmesh:state:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStateStore{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "state_store_redis")),
	}
}

// Save implements StateStore.
func (s *RedisStateStore) Save(ctx context.Context, key string, value any, contextStr string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("save %q: %w", key, err)
	}

	if contextStr != "" {
		shadow, err := json.Marshal(contextStr)
		if err != nil {
			return fmt.Errorf("encode context for %q: %w", key, err)
		}
		if err := s.client.Set(ctx, s.prefix+key+contextKeySuffix, shadow, 0).Err(); err != nil {
			return fmt.Errorf("save context for %q: %w", key, err)
		}
	}
	return nil
}

// Retrieve implements StateStore.
func (s *RedisStateStore) Retrieve(ctx context.Context, key string) (any, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("retrieve %q: %w", key, err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false, fmt.Errorf("decode value for %q: %w", key, err)
	}
	return value, true, nil
}

// Clear implements StateStore. Only keys under this store's prefix are removed.
func (s *RedisStateStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan state keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
