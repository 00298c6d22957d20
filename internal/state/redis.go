package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// DefaultRedisPrefix namespaces memory hashes.
const DefaultRedisPrefix = "bizbot:memory:"

// RedisStore keeps Memory in Redis hashes so several instances share it.
// Every update refreshes the key TTL.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisClient parses url and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("state: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("state: redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisStore wraps rdb. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) (Memory, error) {
	if key == "" {
		return Memory{}, ErrEmptyKey
	}
	h, err := s.rdb.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return Memory{}, fmt.Errorf("state: redis get: %w", err)
	}
	return memoryFromHash(h), nil
}

func (s *RedisStore) Update(ctx context.Context, key string, intent domain.Intent) (Memory, error) {
	if key == "" {
		return Memory{}, ErrEmptyKey
	}
	k := s.key(key)
	now := s.now().UTC()

	var all *redis.StringStringMapCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, "last_intent", string(intent), "updated_at", now.UnixNano())
		p.HIncrBy(ctx, k, "message_count", 1)
		if intent == domain.IntentUnknown {
			p.HIncrBy(ctx, k, "unknown_intent_count", 1)
		} else {
			p.HSet(ctx, k, "unknown_intent_count", 0)
		}
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		all = p.HGetAll(ctx, k)
		return nil
	})
	if err != nil {
		return Memory{}, fmt.Errorf("state: redis update: %w", err)
	}
	return memoryFromHash(all.Val()), nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("state: redis clear: %w", err)
	}
	return nil
}

func memoryFromHash(h map[string]string) Memory {
	var m Memory
	m.LastIntent = domain.Intent(h["last_intent"])
	m.MessageCount, _ = strconv.Atoi(h["message_count"])
	m.UnknownIntentCount, _ = strconv.Atoi(h["unknown_intent_count"])
	if ns, err := strconv.ParseInt(h["updated_at"], 10, 64); err == nil && ns > 0 {
		m.UpdatedAt = time.Unix(0, ns).UTC()
	}
	return m
}
