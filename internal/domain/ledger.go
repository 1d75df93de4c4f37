package domain

import "context"

// Ledger is the RPC surface of the external settlement authority. It is a
// pure facade: no business-rule validation happens behind it, and the
// completion of a write never proves the transition happened; callers must
// confirm with a fresh read.
type Ledger interface {
	// ApproveStake authorizes the ledger's stake vault to take custody of
	// the NFT before a commitment is submitted.
	ApproveStake(ctx context.Context, stake StakeRef) error

	// CreateMatch locks the stake and the commitment hash into a new match
	// and returns the ledger-assigned match id.
	CreateMatch(ctx context.Context, stake StakeRef, commitHash [32]byte) (uint64, error)

	// JoinMatch fills the open slot of an existing match.
	JoinMatch(ctx context.Context, matchID uint64, stake StakeRef, commitHash [32]byte) error

	// StartMatch opens the price window. Permitted only once both players
	// have committed.
	StartMatch(ctx context.Context, matchID uint64) error

	// RevealAndSettle discloses the selection, roles, and salt for
	// verification against the stored commitment and scoring.
	RevealAndSettle(ctx context.Context, matchID uint64, secret Secret) error

	// CancelMatch abandons a match whose opponent slot is still empty and
	// returns the caller's stake.
	CancelMatch(ctx context.Context, matchID uint64) error

	// ClearStuckMatch detaches the caller from their own stale match,
	// whatever phase it is stuck in, and returns their stake.
	ClearStuckMatch(ctx context.Context) error

	// ForceExpireMatch expires a stale match the caller is not part of.
	ForceExpireMatch(ctx context.Context, matchID uint64) error

	// GetMatch returns a snapshot of the match record.
	GetMatch(ctx context.Context, matchID uint64) (MatchSnapshot, error)

	// GetActiveMatch returns the id of the match the address is bound to,
	// or ErrNoActiveMatch.
	GetActiveMatch(ctx context.Context, address string) (uint64, error)
}
