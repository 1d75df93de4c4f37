// Package match drives a match through its lifecycle against the ledger. The
// ledger owns every phase transition; this package validates locally, writes,
// and then confirms each transition by reading the ledger back. Local state
// never advances on a write completing, only on the re-read agreeing.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clapogame/clapobot/internal/commit"
	"github.com/clapogame/clapobot/internal/domain"
	"github.com/clapogame/clapobot/internal/portfolio"
	"github.com/clapogame/clapobot/internal/vault"
)

// Vault is the secret storage the machine needs: the plain vault operations
// plus the two combined transactions that keep secret and session in step.
type Vault interface {
	domain.SecretVault
	// Adopt promotes the pending secret to its match key and records the
	// session atomically.
	Adopt(ctx context.Context, address string, matchID uint64) error
	// Resolve clears secret and session for a terminally resolved match.
	Resolve(ctx context.Context, address string, matchID uint64) error
}

// Machine orchestrates the local player's side of a match.
type Machine struct {
	ledger    domain.Ledger
	vault     Vault
	sessions  domain.SessionStore
	validator *portfolio.Validator

	address  string
	duration time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// Config collects the machine's dependencies.
type Config struct {
	Ledger    domain.Ledger
	Vault     Vault
	Sessions  domain.SessionStore
	Validator *portfolio.Validator
	Address   string
	// Duration is the price window length. Zero means 120s.
	Duration time.Duration
	Logger   *slog.Logger
}

// New builds a Machine.
func New(cfg Config) *Machine {
	if cfg.Duration == 0 {
		cfg.Duration = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		ledger:    cfg.Ledger,
		vault:     cfg.Vault,
		sessions:  cfg.Sessions,
		validator: cfg.Validator,
		address:   cfg.Address,
		duration:  cfg.Duration,
		now:       time.Now,
		log:       cfg.Logger.With(slog.String("component", "match")),
	}
}

// Address returns the local wallet address the machine acts for.
func (m *Machine) Address() string { return m.address }

// Duration returns the configured price window length.
func (m *Machine) Duration() time.Duration { return m.duration }

// Create validates the selection, seals the reveal secret, locks the stake
// and opens a new match on the ledger. The secret is persisted before any
// ledger write so a crash between commit and id assignment cannot orphan it.
func (m *Machine) Create(ctx context.Context, stake domain.StakeRef, sel domain.Selection) (domain.MatchSnapshot, error) {
	if err := m.validator.Validate(sel); err != nil {
		return domain.MatchSnapshot{}, err
	}

	secret := domain.Secret{Symbols: sel.Symbols, Roles: sel.Roles, Salt: commit.NewSalt()}
	hash := commit.FromSecret(secret)
	if err := m.vault.Store(ctx, vault.PendingKey(m.address), secret); err != nil {
		return domain.MatchSnapshot{}, err
	}

	if err := m.ledger.ApproveStake(ctx, stake); err != nil {
		return domain.MatchSnapshot{}, err
	}
	id, err := m.ledger.CreateMatch(ctx, stake, hash)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if err := m.vault.Adopt(ctx, m.address, id); err != nil {
		return domain.MatchSnapshot{}, err
	}
	// Adopt records the session inside the vault file; mirror it into the
	// injected store, which may be a shared backend.
	if err := m.sessions.Set(ctx, m.address, id); err != nil {
		return domain.MatchSnapshot{}, err
	}

	snap, err := m.confirm(ctx, id)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	slot, _, ok := snap.SlotOf(m.address)
	if !ok || !slot.Committed {
		return domain.MatchSnapshot{}, domain.Inconsistent("create",
			fmt.Sprintf("match %d does not record our commitment", id))
	}
	m.log.Info("match created",
		slog.Uint64("match_id", id),
		slog.String("stake_contract", stake.Contract),
		slog.Uint64("stake_token", stake.TokenID))
	return snap, nil
}

// Join validates the selection, seals the reveal secret, locks the stake and
// joins an existing open match. The join is confirmed by re-reading the
// ledger and requiring the Committed phase.
func (m *Machine) Join(ctx context.Context, matchID uint64, stake domain.StakeRef, sel domain.Selection) (domain.MatchSnapshot, error) {
	if err := m.validator.Validate(sel); err != nil {
		return domain.MatchSnapshot{}, err
	}
	snap, err := m.ledger.GetMatch(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if snap.Phase != domain.PhaseCreated {
		return domain.MatchSnapshot{}, domain.Rejected("join",
			fmt.Sprintf("match %d is %s, not joinable", matchID, snap.Phase))
	}
	if _, _, ok := snap.SlotOf(m.address); ok {
		return domain.MatchSnapshot{}, domain.Rejected("join", "cannot join own match")
	}

	secret := domain.Secret{Symbols: sel.Symbols, Roles: sel.Roles, Salt: commit.NewSalt()}
	hash := commit.FromSecret(secret)
	if err := m.vault.Store(ctx, vault.PendingKey(m.address), secret); err != nil {
		return domain.MatchSnapshot{}, err
	}

	if err := m.ledger.ApproveStake(ctx, stake); err != nil {
		return domain.MatchSnapshot{}, err
	}
	if err := m.ledger.JoinMatch(ctx, matchID, stake, hash); err != nil {
		return domain.MatchSnapshot{}, err
	}
	if err := m.vault.Adopt(ctx, m.address, matchID); err != nil {
		return domain.MatchSnapshot{}, err
	}
	if err := m.sessions.Set(ctx, m.address, matchID); err != nil {
		return domain.MatchSnapshot{}, err
	}

	snap, err = m.confirm(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if snap.Phase != domain.PhaseCommitted {
		return domain.MatchSnapshot{}, domain.Inconsistent("join",
			fmt.Sprintf("match %d is %s after join", matchID, snap.Phase))
	}
	m.log.Info("match joined", slog.Uint64("match_id", matchID))
	return snap, nil
}

// Start opens the price window. Valid only once both commitments are on the
// ledger; a start from any other phase is rejected before any write goes out.
func (m *Machine) Start(ctx context.Context, matchID uint64) (domain.MatchSnapshot, error) {
	snap, err := m.ledger.GetMatch(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if _, _, ok := snap.SlotOf(m.address); !ok {
		return domain.MatchSnapshot{}, domain.Rejected("start", "not a participant")
	}
	if snap.Phase == domain.PhaseStarted {
		return snap, nil // opponent beat us to it
	}
	if snap.Phase != domain.PhaseCommitted {
		return domain.MatchSnapshot{}, domain.Rejected("start",
			fmt.Sprintf("match %d is %s, cannot start", matchID, snap.Phase))
	}

	if err := m.ledger.StartMatch(ctx, matchID); err != nil {
		return domain.MatchSnapshot{}, err
	}
	snap, err = m.confirm(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if snap.Phase != domain.PhaseStarted {
		return domain.MatchSnapshot{}, domain.Inconsistent("start",
			fmt.Sprintf("match %d is %s after start", matchID, snap.Phase))
	}
	m.log.Info("price window open",
		slog.Uint64("match_id", matchID),
		slog.Time("started_at", snap.StartedAt))
	return snap, nil
}

// Reveal discloses the stored secret once the ledger-owned window has run
// out. The commitment is re-derived from the stored secret and checked
// against the ledger's record before anything is sent; a mismatch means the
// vault and the ledger have diverged and only recovery may touch the match.
func (m *Machine) Reveal(ctx context.Context, matchID uint64) (domain.MatchSnapshot, error) {
	snap, err := m.ledger.GetMatch(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	slot, _, ok := snap.SlotOf(m.address)
	if !ok {
		return domain.MatchSnapshot{}, domain.Rejected("reveal", "not a participant")
	}
	if snap.Phase.Terminal() {
		return snap, m.resolve(ctx, matchID)
	}
	if slot.Revealed {
		return snap, nil // waiting on the opponent
	}
	if !snap.Revealable(m.now(), m.duration) {
		return domain.MatchSnapshot{}, domain.Rejected("reveal", "price window still running")
	}

	secret, err := m.vault.Load(ctx, vault.MatchKey(matchID))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.MatchSnapshot{}, domain.Inconsistent("reveal",
			fmt.Sprintf("no stored secret for match %d", matchID))
	}
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if !secret.Complete() {
		return domain.MatchSnapshot{}, domain.Inconsistent("reveal",
			fmt.Sprintf("stored secret for match %d is incomplete", matchID))
	}
	if commit.FromSecret(secret) != slot.CommitHash {
		return domain.MatchSnapshot{}, domain.Inconsistent("reveal",
			fmt.Sprintf("stored secret for match %d does not reproduce the ledger commitment", matchID))
	}

	if err := m.ledger.RevealAndSettle(ctx, matchID, secret); err != nil {
		return domain.MatchSnapshot{}, err
	}
	snap, err = m.confirm(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	slot, _, _ = snap.SlotOf(m.address)
	if !slot.Revealed {
		return domain.MatchSnapshot{}, domain.Inconsistent("reveal",
			fmt.Sprintf("match %d does not record our reveal", matchID))
	}
	m.log.Info("revealed", slog.Uint64("match_id", matchID), slog.String("phase", snap.Phase.String()))

	// The secret has served its purpose only once the ledger says the match
	// is settled; until then a re-send may still be needed.
	if snap.Phase.Terminal() {
		if err := m.resolve(ctx, matchID); err != nil {
			return domain.MatchSnapshot{}, err
		}
	}
	return snap, nil
}

// Cancel withdraws an open match nobody has joined and reclaims the stake.
func (m *Machine) Cancel(ctx context.Context, matchID uint64) (domain.MatchSnapshot, error) {
	snap, err := m.ledger.GetMatch(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if snap.Phase.Terminal() {
		return snap, m.resolve(ctx, matchID)
	}
	if snap.Phase != domain.PhaseCreated || !snap.Players[1].Empty() {
		return domain.MatchSnapshot{}, domain.Rejected("cancel",
			fmt.Sprintf("match %d has an opponent, cannot cancel", matchID))
	}

	if err := m.ledger.CancelMatch(ctx, matchID); err != nil {
		return domain.MatchSnapshot{}, err
	}
	snap, err = m.confirm(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if !snap.Phase.Terminal() {
		return domain.MatchSnapshot{}, domain.Inconsistent("cancel",
			fmt.Sprintf("match %d is %s after cancel", matchID, snap.Phase))
	}
	if err := m.resolve(ctx, matchID); err != nil {
		return domain.MatchSnapshot{}, err
	}
	m.log.Info("match cancelled", slog.Uint64("match_id", matchID))
	return snap, nil
}

// Resume reconciles local session state with the ledger after a restart. It
// returns the snapshot of the match that is still live, or ErrNoActiveMatch
// when nothing needs attention. Terminal matches found along the way have
// their secret and session cleared.
func (m *Machine) Resume(ctx context.Context) (domain.MatchSnapshot, error) {
	id, err := m.sessions.Get(ctx, m.address)
	if errors.Is(err, domain.ErrNoActiveMatch) {
		// No local session; the ledger may still have us in a match, for
		// example after losing the vault file.
		id, err = m.ledger.GetActiveMatch(ctx, m.address)
	}
	if err != nil {
		return domain.MatchSnapshot{}, err
	}

	snap, err := m.ledger.GetMatch(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		// Session points at a match the ledger no longer reports.
		if err := m.resolve(ctx, id); err != nil {
			return domain.MatchSnapshot{}, err
		}
		return domain.MatchSnapshot{}, domain.ErrNoActiveMatch
	}
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if snap.Phase.Terminal() {
		if err := m.resolve(ctx, id); err != nil {
			return domain.MatchSnapshot{}, err
		}
		return domain.MatchSnapshot{}, domain.ErrNoActiveMatch
	}

	// A crash between the create or join transaction landing and the pending
	// secret's promotion leaves the secret parked under the pending key.
	// Promote it now if it reproduces our commitment on the ledger.
	if slot, _, ok := snap.SlotOf(m.address); ok && slot.Committed {
		_, err := m.vault.Load(ctx, vault.MatchKey(id))
		if errors.Is(err, domain.ErrNotFound) {
			pending, perr := m.vault.Load(ctx, vault.PendingKey(m.address))
			if perr == nil && commit.FromSecret(pending) == slot.CommitHash {
				if err := m.vault.Rename(ctx, vault.PendingKey(m.address), vault.MatchKey(id)); err != nil {
					return domain.MatchSnapshot{}, err
				}
				m.log.Info("promoted pending secret", slog.Uint64("match_id", id))
			}
		} else if err != nil {
			return domain.MatchSnapshot{}, err
		}
	}

	// Keep the session in step with the ledger in case we resumed from the
	// ledger's view alone.
	if err := m.sessions.Set(ctx, m.address, id); err != nil {
		return domain.MatchSnapshot{}, err
	}
	m.log.Info("resumed active match",
		slog.Uint64("match_id", id),
		slog.String("phase", snap.Phase.String()))
	return snap, nil
}

// Snapshot re-reads a match from the ledger.
func (m *Machine) Snapshot(ctx context.Context, matchID uint64) (domain.MatchSnapshot, error) {
	return m.ledger.GetMatch(ctx, matchID)
}

// Result turns a terminal snapshot into a history record for the local
// wallet. Scores are the provisional local scores; the authoritative payout
// already happened on the ledger.
func (m *Machine) Result(snap domain.MatchSnapshot, ownScore, otherScore float64) domain.MatchResult {
	slot, idx, _ := snap.SlotOf(m.address)
	other := snap.Players[1-idx]
	return domain.MatchResult{
		MatchID:    snap.ID,
		Wallet:     m.address,
		Opponent:   other.Address,
		Phase:      snap.Phase,
		OwnScore:   ownScore,
		OtherScore: otherScore,
		Won:        snap.Phase == domain.PhaseSettled && ownScore > otherScore,
		StakeRef:   slot.Stake,
		StartedAt:  snap.StartedAt,
		SettledAt:  m.now(),
	}
}

// confirm is the read that every write must be followed by.
func (m *Machine) confirm(ctx context.Context, matchID uint64) (domain.MatchSnapshot, error) {
	snap, err := m.ledger.GetMatch(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, fmt.Errorf("match: confirm read after write: %w", err)
	}
	return snap, nil
}

// resolve clears the secret and session of a terminally resolved match. The
// session store may live outside the vault file (a shared redis backend), so
// it is cleared through the injected interface as well.
func (m *Machine) resolve(ctx context.Context, matchID uint64) error {
	if err := m.vault.Resolve(ctx, m.address, matchID); err != nil {
		return err
	}
	return m.sessions.Clear(ctx, m.address)
}
