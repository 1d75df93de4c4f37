// Package recovery unwedges matches the normal lifecycle can no longer
// drive: open matches nobody joined, stale active-match pointers, and
// non-terminal matches past the staleness threshold. Every escape hatch here
// is idempotent so it can be retried blindly after a transient failure.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clapogame/clapobot/internal/domain"
)

// Vault is the subset of secret storage recovery needs to clean up after a
// match is forced out of play.
type Vault interface {
	Resolve(ctx context.Context, address string, matchID uint64) error
}

// Coordinator runs the recovery procedures for one wallet.
type Coordinator struct {
	ledger domain.Ledger
	vault  Vault

	address   string
	grace     time.Duration
	staleness time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// Config collects the coordinator's dependencies. Zero durations default to
// the protocol constants: 120s grace, 120s staleness.
type Config struct {
	Ledger    domain.Ledger
	Vault     Vault
	Address   string
	Grace     time.Duration
	Staleness time.Duration
	Logger    *slog.Logger
}

// New builds a Coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Grace == 0 {
		cfg.Grace = 120 * time.Second
	}
	if cfg.Staleness == 0 {
		cfg.Staleness = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		ledger:    cfg.Ledger,
		vault:     cfg.Vault,
		address:   cfg.Address,
		grace:     cfg.Grace,
		staleness: cfg.Staleness,
		now:       time.Now,
		log:       cfg.Logger.With(slog.String("component", "recovery")),
	}
}

// Finding is the diagnosis of one match's health.
type Finding struct {
	MatchID   uint64
	Phase     domain.Phase
	Age       time.Duration
	Abandoned bool // Created with no opponent past the grace period
	Stuck     bool // non-terminal past the staleness threshold
}

// Inspect diagnoses the wallet's active match without changing anything.
// Returns domain.ErrNoActiveMatch when the ledger reports no active match.
func (c *Coordinator) Inspect(ctx context.Context) (Finding, error) {
	id, err := c.ledger.GetActiveMatch(ctx, c.address)
	if err != nil {
		return Finding{}, err
	}
	snap, err := c.ledger.GetMatch(ctx, id)
	if err != nil {
		return Finding{}, err
	}

	now := c.now()
	f := Finding{
		MatchID: id,
		Phase:   snap.Phase,
		Age:     snap.Age(now),
	}
	if snap.Phase == domain.PhaseCreated && snap.Players[1].Empty() {
		f.Abandoned = f.Age >= c.grace
	}
	if !snap.Phase.Terminal() {
		f.Stuck = f.Age >= c.staleness
	}
	return f, nil
}

// Run inspects and applies the mildest procedure that fits: cancel an
// abandoned open match we created, otherwise clear a stuck pointer. Returns
// the finding that drove the decision.
func (c *Coordinator) Run(ctx context.Context) (Finding, error) {
	f, err := c.Inspect(ctx)
	if errors.Is(err, domain.ErrNoActiveMatch) {
		// Nothing on the ledger; still clear any stale local pointer.
		return Finding{}, c.ClearStuck(ctx)
	}
	if err != nil {
		return Finding{}, err
	}

	switch {
	case f.Abandoned:
		c.log.Info("cancelling abandoned match",
			slog.Uint64("match_id", f.MatchID),
			slog.Duration("age", f.Age))
		return f, c.cancelAbandoned(ctx, f.MatchID)
	case f.Stuck:
		c.log.Info("clearing stuck match",
			slog.Uint64("match_id", f.MatchID),
			slog.String("phase", f.Phase.String()),
			slog.Duration("age", f.Age))
		return f, c.ClearStuck(ctx)
	default:
		c.log.Info("active match is healthy",
			slog.Uint64("match_id", f.MatchID),
			slog.String("phase", f.Phase.String()))
		return f, nil
	}
}

// ClearStuck resets the wallet's active-match pointer on the ledger and
// drops the local secret and session. Safe to call when nothing is stuck;
// the ledger treats it as a no-op and so do we.
func (c *Coordinator) ClearStuck(ctx context.Context) error {
	id, err := c.ledger.GetActiveMatch(ctx, c.address)
	if err != nil && !errors.Is(err, domain.ErrNoActiveMatch) {
		return err
	}
	if err := c.ledger.ClearStuckMatch(ctx); err != nil {
		return err
	}
	if id != 0 {
		if err := c.vault.Resolve(ctx, c.address, id); err != nil {
			return err
		}
	}
	return nil
}

// ForceExpire pushes any match past the staleness threshold into the
// Expired phase, returning each stake to its owner. Anyone may call it;
// expiring an already-terminal match is a no-op.
func (c *Coordinator) ForceExpire(ctx context.Context, matchID uint64) (domain.MatchSnapshot, error) {
	snap, err := c.ledger.GetMatch(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if snap.Phase.Terminal() {
		return snap, nil
	}
	if age := snap.Age(c.now()); age < c.staleness {
		return domain.MatchSnapshot{}, domain.Rejected("forceExpire",
			fmt.Sprintf("match %d is only %s old, below the staleness threshold", matchID, age))
	}

	if err := c.ledger.ForceExpireMatch(ctx, matchID); err != nil {
		return domain.MatchSnapshot{}, err
	}
	snap, err = c.ledger.GetMatch(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if !snap.Phase.Terminal() {
		return domain.MatchSnapshot{}, domain.Inconsistent("forceExpire",
			fmt.Sprintf("match %d is %s after force expire", matchID, snap.Phase))
	}
	if _, _, ok := snap.SlotOf(c.address); ok {
		if err := c.vault.Resolve(ctx, c.address, matchID); err != nil {
			return domain.MatchSnapshot{}, err
		}
	}
	c.log.Info("match force-expired", slog.Uint64("match_id", matchID))
	return snap, nil
}

func (c *Coordinator) cancelAbandoned(ctx context.Context, matchID uint64) error {
	if err := c.ledger.CancelMatch(ctx, matchID); err != nil {
		return err
	}
	snap, err := c.ledger.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !snap.Phase.Terminal() {
		return domain.Inconsistent("cancelAbandoned",
			fmt.Sprintf("match %d is %s after cancel", matchID, snap.Phase))
	}
	return c.vault.Resolve(ctx, c.address, matchID)
}
