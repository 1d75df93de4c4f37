package vault

import (
	"context"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/clapogame/clapobot/internal/domain"
)

// Sessions implements domain.SessionStore over the vault's sessions bucket.
type Sessions struct {
	db *bolt.DB
}

// Get returns the recorded active match id for the address, or
// domain.ErrNoActiveMatch.
func (s *Sessions) Get(ctx context.Context, address string) (uint64, error) {
	var id uint64
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket([]byte(sessionsBucket)).Get([]byte(address)); len(raw) == 8 {
			id = binary.BigEndian.Uint64(raw)
			found = true
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("vault: get session %s: %w", address, err)
	}
	if !found {
		return 0, domain.ErrNoActiveMatch
	}
	return id, nil
}

// Set records the active match id for the address.
func (s *Sessions) Set(ctx context.Context, address string, matchID uint64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).Put([]byte(address), encodeID(matchID))
	})
	if err != nil {
		return fmt.Errorf("vault: set session %s: %w", address, err)
	}
	return nil
}

// Clear removes the recorded active match for the address.
func (s *Sessions) Clear(ctx context.Context, address string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).Delete([]byte(address))
	})
	if err != nil {
		return fmt.Errorf("vault: clear session %s: %w", address, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*Sessions)(nil)
