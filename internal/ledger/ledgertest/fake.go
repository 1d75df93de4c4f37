// Package ledgertest provides an in-memory ledger that enforces the
// Matchmaker protocol rules, for exercising the orchestrator without a
// chain. The fake is authoritative the same way the contract is: writes are
// validated against phase and caller, and reads return snapshots.
package ledgertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/clapogame/clapobot/internal/commit"
	"github.com/clapogame/clapobot/internal/domain"
)

// state is the shared ledger state. Multiple Fake views (one per caller)
// point at the same state, the way multiple wallets talk to one contract.
type state struct {
	mu      sync.Mutex
	nextID  uint64
	matches map[uint64]*domain.MatchSnapshot
	active  map[string]uint64 // lowercase address -> match id
	secrets map[uint64]map[string]domain.Secret

	duration  time.Duration
	staleness time.Duration
	now       func() time.Time

	failNext error
}

// Fake is an in-memory domain.Ledger whose writes are attributed to a fixed
// caller address. The defaults mirror the protocol constants: 120s price
// window, 120s staleness threshold.
type Fake struct {
	st     *state
	caller string
}

// New creates a Fake whose writes are attributed to caller.
func New(caller string) *Fake {
	return &Fake{
		st: &state{
			nextID:    1,
			matches:   make(map[uint64]*domain.MatchSnapshot),
			active:    make(map[string]uint64),
			secrets:   make(map[uint64]map[string]domain.Secret),
			duration:  120 * time.Second,
			staleness: 120 * time.Second,
			now:       time.Now,
		},
		caller: caller,
	}
}

// WithCaller returns a view of the same ledger with writes attributed to a
// different address: the opponent, or a third party for force-expire tests.
func (f *Fake) WithCaller(address string) *Fake {
	return &Fake{st: f.st, caller: address}
}

// SetClock replaces the fake's clock.
func (f *Fake) SetClock(now func() time.Time) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.now = now
}

// SetWindows overrides the price window and staleness durations.
func (f *Fake) SetWindows(duration, staleness time.Duration) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.duration = duration
	f.st.staleness = staleness
}

// FailNext makes the next write fail with err and then resets. Used to test
// transient-failure handling.
func (f *Fake) FailNext(err error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.failNext = err
}

func (f *Fake) ApproveStake(ctx context.Context, stake domain.StakeRef) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return f.st.failNextLocked()
}

func (f *Fake) CreateMatch(ctx context.Context, stake domain.StakeRef, commitHash [32]byte) (uint64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if err := f.st.failNextLocked(); err != nil {
		return 0, err
	}
	if _, ok := f.st.active[lower(f.caller)]; ok {
		return 0, domain.Rejected("createMatch", "caller already has an active match")
	}

	id := f.st.nextID
	f.st.nextID++
	f.st.matches[id] = &domain.MatchSnapshot{
		ID:        id,
		Phase:     domain.PhaseCreated,
		CreatedAt: f.st.now(),
		Players: [2]domain.PlayerSlot{{
			Address:    f.caller,
			Stake:      stake,
			CommitHash: commitHash,
			Committed:  true,
		}},
	}
	f.st.active[lower(f.caller)] = id
	return id, nil
}

func (f *Fake) JoinMatch(ctx context.Context, matchID uint64, stake domain.StakeRef, commitHash [32]byte) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if err := f.st.failNextLocked(); err != nil {
		return err
	}
	m, ok := f.st.matches[matchID]
	if !ok {
		return domain.Rejected("joinMatch", "no such match")
	}
	if m.Phase != domain.PhaseCreated {
		return domain.Rejected("joinMatch", "match is not joinable")
	}
	if lower(m.Players[0].Address) == lower(f.caller) {
		return domain.Rejected("joinMatch", "cannot join own match")
	}
	if _, ok := f.st.active[lower(f.caller)]; ok {
		return domain.Rejected("joinMatch", "caller already has an active match")
	}

	m.Players[1] = domain.PlayerSlot{
		Address:    f.caller,
		Stake:      stake,
		CommitHash: commitHash,
		Committed:  true,
	}
	m.Phase = domain.PhaseCommitted
	f.st.active[lower(f.caller)] = matchID
	return nil
}

func (f *Fake) StartMatch(ctx context.Context, matchID uint64) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if err := f.st.failNextLocked(); err != nil {
		return err
	}
	m, ok := f.st.matches[matchID]
	if !ok {
		return domain.Rejected("startMatch", "no such match")
	}
	if _, _, ok := m.SlotOf(f.caller); !ok {
		return domain.Rejected("startMatch", "caller is not a participant")
	}
	if m.Phase != domain.PhaseCommitted {
		return domain.Rejected("startMatch", "both players must commit before start")
	}
	m.Phase = domain.PhaseStarted
	m.StartedAt = f.st.now()
	return nil
}

func (f *Fake) RevealAndSettle(ctx context.Context, matchID uint64, secret domain.Secret) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if err := f.st.failNextLocked(); err != nil {
		return err
	}
	m, ok := f.st.matches[matchID]
	if !ok {
		return domain.Rejected("revealAndSettle", "no such match")
	}
	slot, idx, ok := m.SlotOf(f.caller)
	if !ok {
		return domain.Rejected("revealAndSettle", "caller is not a participant")
	}
	if slot.Revealed {
		return domain.Rejected("revealAndSettle", "already revealed")
	}
	if !m.Revealable(f.st.now(), f.st.duration) {
		return domain.Rejected("revealAndSettle", "price window still running")
	}
	if commit.FromSecret(secret) != slot.CommitHash {
		return domain.Rejected("revealAndSettle", "commitment mismatch")
	}

	m.Players[idx].Revealed = true
	if f.st.secrets[matchID] == nil {
		f.st.secrets[matchID] = make(map[string]domain.Secret)
	}
	f.st.secrets[matchID][lower(f.caller)] = secret

	if m.Players[0].Revealed && m.Players[1].Revealed {
		f.st.settleLocked(m)
	}
	return nil
}

func (f *Fake) CancelMatch(ctx context.Context, matchID uint64) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if err := f.st.failNextLocked(); err != nil {
		return err
	}
	m, ok := f.st.matches[matchID]
	if !ok {
		return domain.Rejected("cancelMatch", "no such match")
	}
	if m.Phase.Terminal() {
		return nil
	}
	if lower(m.Players[0].Address) != lower(f.caller) {
		return domain.Rejected("cancelMatch", "only the creator may cancel")
	}
	if !m.Players[1].Empty() {
		return domain.Rejected("cancelMatch", "opponent already joined")
	}
	f.st.expireLocked(m)
	return nil
}

func (f *Fake) ClearStuckMatch(ctx context.Context) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if err := f.st.failNextLocked(); err != nil {
		return err
	}
	id, ok := f.st.active[lower(f.caller)]
	if !ok {
		return nil // nothing to clear: idempotent no-op
	}
	m := f.st.matches[id]
	if !m.Phase.Terminal() && m.Age(f.st.now()) < f.st.staleness {
		return domain.Rejected("clearStuckMatch", "match is not stale yet")
	}
	if !m.Phase.Terminal() {
		f.st.expireLocked(m)
	}
	delete(f.st.active, lower(f.caller))
	return nil
}

func (f *Fake) ForceExpireMatch(ctx context.Context, matchID uint64) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if err := f.st.failNextLocked(); err != nil {
		return err
	}
	m, ok := f.st.matches[matchID]
	if !ok {
		return domain.Rejected("forceExpireMatch", "no such match")
	}
	if m.Phase.Terminal() {
		return nil // idempotent no-op
	}
	if m.Age(f.st.now()) < f.st.staleness {
		return domain.Rejected("forceExpireMatch", "match is not stale yet")
	}
	f.st.expireLocked(m)
	return nil
}

func (f *Fake) GetMatch(ctx context.Context, matchID uint64) (domain.MatchSnapshot, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	m, ok := f.st.matches[matchID]
	if !ok {
		return domain.MatchSnapshot{}, domain.ErrNotFound
	}
	return *m, nil
}

func (f *Fake) GetActiveMatch(ctx context.Context, address string) (uint64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	id, ok := f.st.active[lower(address)]
	if !ok {
		return 0, domain.ErrNoActiveMatch
	}
	return id, nil
}

// RevealedSecret returns the secret a player disclosed, for assertions.
func (f *Fake) RevealedSecret(matchID uint64, address string) (domain.Secret, bool) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	s, ok := f.st.secrets[matchID][lower(address)]
	return s, ok
}

func (s *state) settleLocked(m *domain.MatchSnapshot) {
	m.Phase = domain.PhaseSettled
	for _, p := range m.Players {
		delete(s.active, lower(p.Address))
	}
}

func (s *state) expireLocked(m *domain.MatchSnapshot) {
	m.Phase = domain.PhaseExpired
	for _, p := range m.Players {
		if p.Address != "" {
			delete(s.active, lower(p.Address))
		}
	}
}

func (s *state) failNextLocked() error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	return nil
}

func lower(s string) string { return strings.ToLower(s) }

// Compile-time interface check.
var _ domain.Ledger = (*Fake)(nil)
