package recovery

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clapogame/clapobot/internal/domain"
	"github.com/clapogame/clapobot/internal/ledger/ledgertest"
	"github.com/clapogame/clapobot/internal/vault"
)

const (
	ownerAddr    = "0xAAAA000000000000000000000000000000000001"
	opponentAddr = "0xBBBB000000000000000000000000000000000002"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	clk    *fakeClock
	ledger *ledgertest.Fake
	vault  *vault.Memory
	coord  *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}

	led := ledgertest.New(ownerAddr)
	led.SetClock(clk.Now)

	v := vault.NewMemory()
	coord := New(Config{
		Ledger:  led,
		Vault:   v,
		Address: ownerAddr,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	coord.now = clk.Now

	return &fixture{clk: clk, ledger: led, vault: v, coord: coord}
}

func stake(tokenID uint64) domain.StakeRef {
	return domain.StakeRef{Contract: "0xCCCC000000000000000000000000000000000003", TokenID: tokenID}
}

// openMatch creates an unjoined match for the owner.
func openMatch(t *testing.T, fx *fixture) uint64 {
	t.Helper()
	id, err := fx.ledger.CreateMatch(context.Background(), stake(1), [32]byte{1})
	require.NoError(t, err)
	return id
}

// startedMatch takes a match all the way into the running price window.
func startedMatch(t *testing.T, fx *fixture) uint64 {
	t.Helper()
	ctx := context.Background()
	id := openMatch(t, fx)
	opponent := fx.ledger.WithCaller(opponentAddr)
	require.NoError(t, opponent.JoinMatch(ctx, id, stake(2), [32]byte{2}))
	require.NoError(t, fx.ledger.StartMatch(ctx, id))
	return id
}

func TestInspectWithoutActiveMatch(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.coord.Inspect(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoActiveMatch)
}

func TestInspectHealthyMatch(t *testing.T) {
	fx := newFixture(t)
	id := openMatch(t, fx)
	fx.clk.Advance(30 * time.Second)

	f, err := fx.coord.Inspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, f.MatchID)
	assert.Equal(t, domain.PhaseCreated, f.Phase)
	assert.Equal(t, 30*time.Second, f.Age)
	assert.False(t, f.Abandoned)
	assert.False(t, f.Stuck)
}

func TestInspectAbandonedMatch(t *testing.T) {
	fx := newFixture(t)
	openMatch(t, fx)
	fx.clk.Advance(121 * time.Second)

	f, err := fx.coord.Inspect(context.Background())
	require.NoError(t, err)
	assert.True(t, f.Abandoned)
	assert.True(t, f.Stuck)
}

func TestRunCancelsAbandonedMatch(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	id := openMatch(t, fx)
	require.NoError(t, fx.vault.Store(ctx, vault.MatchKey(id), domain.Secret{Salt: "s"}))
	fx.clk.Advance(121 * time.Second)

	f, err := fx.coord.Run(ctx)
	require.NoError(t, err)
	assert.True(t, f.Abandoned)

	snap, err := fx.ledger.GetMatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseExpired, snap.Phase)

	_, err = fx.vault.Load(ctx, vault.MatchKey(id))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = fx.ledger.GetActiveMatch(ctx, ownerAddr)
	assert.ErrorIs(t, err, domain.ErrNoActiveMatch)
}

func TestRunLeavesHealthyMatchAlone(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	id := startedMatch(t, fx)
	fx.clk.Advance(10 * time.Second)

	f, err := fx.coord.Run(ctx)
	require.NoError(t, err)
	assert.False(t, f.Abandoned)
	assert.False(t, f.Stuck)

	snap, err := fx.ledger.GetMatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseStarted, snap.Phase)
}

func TestClearStuckIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	require.NoError(t, fx.coord.ClearStuck(ctx))
	require.NoError(t, fx.coord.ClearStuck(ctx))
}

func TestClearStuckExpiresStaleMatch(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	id := startedMatch(t, fx)
	require.NoError(t, fx.vault.Store(ctx, vault.MatchKey(id), domain.Secret{Salt: "s"}))
	fx.clk.Advance(200 * time.Second)

	require.NoError(t, fx.coord.ClearStuck(ctx))

	snap, err := fx.ledger.GetMatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseExpired, snap.Phase)
	_, err = fx.vault.Load(ctx, vault.MatchKey(id))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestForceExpireBelowThreshold(t *testing.T) {
	fx := newFixture(t)
	id := startedMatch(t, fx)
	fx.clk.Advance(60 * time.Second)

	_, err := fx.coord.ForceExpire(context.Background(), id)
	assert.True(t, domain.IsRejected(err))
}

func TestForceExpireStaleMatch(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	id := startedMatch(t, fx)
	require.NoError(t, fx.vault.Store(ctx, vault.MatchKey(id), domain.Secret{Salt: "s"}))
	fx.clk.Advance(200 * time.Second)

	snap, err := fx.coord.ForceExpire(ctx, id)
	require.NoError(t, err)
	assert.True(t, snap.Phase.Terminal())

	_, err = fx.vault.Load(ctx, vault.MatchKey(id))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Expiring an already-terminal match is a no-op.
	again, err := fx.coord.ForceExpire(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, snap.Phase, again.Phase)
}

func TestForceExpireUnknownMatch(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.coord.ForceExpire(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
