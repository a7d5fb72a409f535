package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// SessionStore tracks which token IDs are currently live. Login records the
// token ID with the token's own lifetime; logout deletes it, which revokes
// the session immediately regardless of the token's expiry.
type SessionStore struct {
	client     *redisv9.Client
	defaultTTL time.Duration
}

func NewSessionStore(client *redisv9.Client, defaultTTL time.Duration) *SessionStore {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Hour
	}
	return &SessionStore{
		client:     client,
		defaultTTL: defaultTTL,
	}
}

func (s *SessionStore) Put(ctx context.Context, tokenID string, userID uint, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	key := s.sessionKey(tokenID)
	if err := s.client.Set(ctx, key, strconv.FormatUint(uint64(userID), 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis set session failed: %w", err)
	}
	return nil
}

func (s *SessionStore) Exists(ctx context.Context, tokenID string) (bool, error) {
	key := s.sessionKey(tokenID)
	count, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis check session failed: %w", err)
	}
	return count > 0, nil
}

func (s *SessionStore) Delete(ctx context.Context, tokenID string) error {
	key := s.sessionKey(tokenID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete session failed: %w", err)
	}
	return nil
}

func (s *SessionStore) sessionKey(tokenID string) string {
	return "auth:session:" + tokenID
}
