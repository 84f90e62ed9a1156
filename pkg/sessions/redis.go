package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces session keys
const DefaultRedisPrefix = "parley:session"

// RedisStore keeps sessions in Redis so every API instance sees the same set.
// Entries expire through Redis key TTLs.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store. The client is owned by the
// caller unless Close is called.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *RedisStore) key(handle string) string {
	return fmt.Sprintf("%s:%s", r.prefix, storeKey(handle))
}

// Put implements Store
func (r *RedisStore) Put(ctx context.Context, handle string, s Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(handle), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get implements Store
func (r *RedisStore) Get(ctx context.Context, handle string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// Unreadable entries are treated as absent and dropped
		r.client.Del(ctx, r.key(handle))
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

// Delete implements Store
func (r *RedisStore) Delete(ctx context.Context, handle string) error {
	if err := r.client.Del(ctx, r.key(handle)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close implements Store
func (r *RedisStore) Close() error {
	return r.client.Close()
}
