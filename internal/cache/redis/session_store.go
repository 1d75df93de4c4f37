package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/clapogame/clapobot/internal/domain"
)

// SessionStore implements domain.SessionStore on Redis, for deployments that
// run several wallets against one shared backend. The value at
// "clapo:session:{address}" is the active match id.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a SessionStore backed by the given Client.
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{rdb: c.Underlying()}
}

func sessionKey(address string) string {
	return "clapo:session:" + address
}

// Get returns the recorded active match id, or domain.ErrNoActiveMatch.
func (s *SessionStore) Get(ctx context.Context, address string) (uint64, error) {
	val, err := s.rdb.Get(ctx, sessionKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrNoActiveMatch
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get session %s: %w", address, err)
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse session %s: %w", address, err)
	}
	return id, nil
}

// Set records the active match id for the address.
func (s *SessionStore) Set(ctx context.Context, address string, matchID uint64) error {
	if err := s.rdb.Set(ctx, sessionKey(address), strconv.FormatUint(matchID, 10), 0).Err(); err != nil {
		return fmt.Errorf("redis: set session %s: %w", address, err)
	}
	return nil
}

// Clear drops the session. Clearing an absent session is a no-op.
func (s *SessionStore) Clear(ctx context.Context, address string) error {
	if err := s.rdb.Del(ctx, sessionKey(address)).Err(); err != nil {
		return fmt.Errorf("redis: clear session %s: %w", address, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*SessionStore)(nil)
