package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"agora/internal/middleware"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is a JSON cache over Redis. A nil Store, or one built with a nil
// client, is a valid no-op cache.
type Store struct {
	rdb *redis.Client
}

// NewStore wraps rdb. rdb may be nil.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) enabled() bool {
	return s != nil && s.rdb != nil
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !s.enabled() {
		return false, nil
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !s.enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which must populate dest),
// then stores the result with ttl. Cache failures never fail the call.
func (s *Store) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := s.GetJSON(ctx, key, dest)
	if err != nil {
		middleware.L(ctx).Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := s.SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.L(ctx).Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Invalidate deletes keys, logging but otherwise ignoring failures.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if !s.enabled() || len(keys) == 0 {
		return
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		middleware.L(ctx).Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// InvalidateForum drops the cached forum detail and stats.
func (s *Store) InvalidateForum(ctx context.Context, forumID uint) {
	s.Invalidate(ctx, ForumKey(forumID), ForumStatsKey(forumID))
}

// InvalidateUser drops the cached user profile.
func (s *Store) InvalidateUser(ctx context.Context, userID uint) {
	s.Invalidate(ctx, UserKey(userID))
}
