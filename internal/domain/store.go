package domain

import (
	"context"
	"io"
	"time"
)

// SecretVault persists reveal secrets across process lifetimes, keyed by
// match identity. A secret is written exactly once at commit/join, read at
// reveal, and cleared at terminal resolution.
type SecretVault interface {
	Store(ctx context.Context, key string, secret Secret) error
	// Load returns ErrNotFound when no secret exists for the key.
	Load(ctx context.Context, key string) (Secret, error)
	Clear(ctx context.Context, key string) error
	// Rename moves a secret from one key to another atomically. Used to
	// promote a pre-create pending secret to its ledger-assigned match key.
	Rename(ctx context.Context, oldKey, newKey string) error
}

// SessionStore holds which match the participant believes is active. It is
// injected rather than kept as ambient global state so tests can swap in an
// in-memory fake, and so a shared backend can serve multiple processes.
type SessionStore interface {
	// Get returns ErrNoActiveMatch when no session is recorded.
	Get(ctx context.Context, address string) (uint64, error)
	Set(ctx context.Context, address string, matchID uint64) error
	Clear(ctx context.Context, address string) error
}

// MatchResult is a finished match as recorded for the local wallet.
type MatchResult struct {
	MatchID    uint64
	Wallet     string
	Opponent   string
	Phase      Phase
	OwnScore   float64
	OtherScore float64
	Won        bool
	StakeRef   StakeRef
	StartedAt  time.Time
	SettledAt  time.Time
}

// ListOpts provides pagination for history queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// HistoryStore persists finished matches for later review.
type HistoryStore interface {
	Insert(ctx context.Context, res MatchResult) error
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]MatchResult, error)
	ListBefore(ctx context.Context, before time.Time) ([]MatchResult, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// PriceCache provides fast access to the latest oracle prices keyed by asset
// symbol.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// BlobWriter stores archive objects in object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
