// Package vault persists the reveal secret and the active-match session in a
// single bbolt file, so both survive process restarts and can be written
// together in one transaction. Secrets are sealed at rest with the vault
// passphrase.
package vault

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/clapogame/clapobot/internal/crypto"
	"github.com/clapogame/clapobot/internal/domain"
)

const (
	secretsBucket  = "secrets"
	sessionsBucket = "sessions"
)

// Bolt is the durable vault. It implements both domain.SecretVault and
// domain.SessionStore; the combined methods below write to both buckets in
// one transaction.
type Bolt struct {
	db         *bolt.DB
	passphrase string
}

// Open opens (or creates) the vault file at path.
func Open(path, passphrase string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("vault: create data dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("vault: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{secretsBucket, sessionsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("create %s bucket: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vault: init buckets: %w", err)
	}

	return &Bolt{db: db, passphrase: passphrase}, nil
}

// Close releases the underlying file.
func (v *Bolt) Close() error {
	return v.db.Close()
}

// MatchKey returns the vault key for a ledger-assigned match id.
func MatchKey(matchID uint64) string {
	return fmt.Sprintf("match:%d", matchID)
}

// PendingKey returns the vault key a secret is parked under between building
// the commitment and learning the ledger-assigned match id.
func PendingKey(address string) string {
	return "pending:" + address
}

// Store seals and writes the secret under key.
func (v *Bolt) Store(ctx context.Context, key string, secret domain.Secret) error {
	sealed, err := v.seal(secret)
	if err != nil {
		return err
	}
	err = v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(secretsBucket)).Put([]byte(key), sealed)
	})
	if err != nil {
		return fmt.Errorf("vault: store %s: %w", key, err)
	}
	return nil
}

// Load reads and unseals the secret under key. Returns domain.ErrNotFound
// when no secret exists.
func (v *Bolt) Load(ctx context.Context, key string) (domain.Secret, error) {
	var sealed []byte
	err := v.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket([]byte(secretsBucket)).Get([]byte(key)); raw != nil {
			sealed = append(sealed, raw...)
		}
		return nil
	})
	if err != nil {
		return domain.Secret{}, fmt.Errorf("vault: load %s: %w", key, err)
	}
	if sealed == nil {
		return domain.Secret{}, domain.ErrNotFound
	}
	return v.unseal(sealed)
}

// Clear removes the secret under key. Clearing an absent key is a no-op.
func (v *Bolt) Clear(ctx context.Context, key string) error {
	err := v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(secretsBucket)).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("vault: clear %s: %w", key, err)
	}
	return nil
}

// Rename moves a secret between keys in one transaction.
func (v *Bolt) Rename(ctx context.Context, oldKey, newKey string) error {
	err := v.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(secretsBucket))
		raw := b.Get([]byte(oldKey))
		if raw == nil {
			return domain.ErrNotFound
		}
		if err := b.Put([]byte(newKey), raw); err != nil {
			return err
		}
		return b.Delete([]byte(oldKey))
	})
	if err != nil {
		return fmt.Errorf("vault: rename %s to %s: %w", oldKey, newKey, err)
	}
	return nil
}

// Sessions returns the session-store view over the same file. Writes made
// through it share the vault's durability but not its sealing; session
// values are plain match ids.
func (v *Bolt) Sessions() *Sessions {
	return &Sessions{db: v.db}
}

// Adopt promotes a pending secret to its ledger-assigned match key and
// records the session, all in one transaction. Either every part lands or
// none does; a crash can never leave a match id without its secret.
func (v *Bolt) Adopt(ctx context.Context, address string, matchID uint64) error {
	err := v.db.Update(func(tx *bolt.Tx) error {
		secrets := tx.Bucket([]byte(secretsBucket))
		raw := secrets.Get([]byte(PendingKey(address)))
		if raw == nil {
			return domain.ErrNotFound
		}
		if err := secrets.Put([]byte(MatchKey(matchID)), raw); err != nil {
			return err
		}
		if err := secrets.Delete([]byte(PendingKey(address))); err != nil {
			return err
		}
		return tx.Bucket([]byte(sessionsBucket)).Put([]byte(address), encodeID(matchID))
	})
	if err != nil {
		return fmt.Errorf("vault: adopt match %d for %s: %w", matchID, address, err)
	}
	return nil
}

// Resolve clears both the secret and the session for a terminally resolved
// match in one transaction.
func (v *Bolt) Resolve(ctx context.Context, address string, matchID uint64) error {
	err := v.db.Update(func(tx *bolt.Tx) error {
		secrets := tx.Bucket([]byte(secretsBucket))
		if err := secrets.Delete([]byte(MatchKey(matchID))); err != nil {
			return err
		}
		if err := secrets.Delete([]byte(PendingKey(address))); err != nil {
			return err
		}
		return tx.Bucket([]byte(sessionsBucket)).Delete([]byte(address))
	})
	if err != nil {
		return fmt.Errorf("vault: resolve match %d for %s: %w", matchID, address, err)
	}
	return nil
}

func (v *Bolt) seal(secret domain.Secret) ([]byte, error) {
	plain, err := json.Marshal(secret)
	if err != nil {
		return nil, fmt.Errorf("vault: marshal secret: %w", err)
	}
	if v.passphrase == "" {
		return plain, nil
	}
	sealed, err := crypto.Seal(plain, v.passphrase)
	if err != nil {
		return nil, fmt.Errorf("vault: seal secret: %w", err)
	}
	return sealed, nil
}

func (v *Bolt) unseal(raw []byte) (domain.Secret, error) {
	plain := raw
	if v.passphrase != "" {
		var err error
		plain, err = crypto.Open(raw, v.passphrase)
		if err != nil {
			return domain.Secret{}, fmt.Errorf("vault: unseal secret: %w", err)
		}
	}
	var secret domain.Secret
	if err := json.Unmarshal(plain, &secret); err != nil {
		return domain.Secret{}, fmt.Errorf("vault: unmarshal secret: %w", err)
	}
	return secret, nil
}

func encodeID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// Compile-time interface checks.
var (
	_ domain.SecretVault = (*Bolt)(nil)
)
