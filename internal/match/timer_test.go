package match

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clapogame/clapobot/internal/domain"
)

func newWatcher(fx *fixture) *Watcher {
	w := NewWatcher(fx.ledger, 5*time.Millisecond, 120*time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.now = fx.clk.Now
	return w
}

func TestWaitForOpponentReturnsOnJoin(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	w := newWatcher(fx)

	created, err := fx.alice.Create(ctx, stake(1), validSelection())
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = fx.bob.Join(ctx, created.ID, stake(2), validSelection())
	}()

	snap, err := w.WaitForOpponent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCommitted, snap.Phase)
}

func TestWaitForOpponentHonorsCancellation(t *testing.T) {
	fx := newFixture(t)
	w := newWatcher(fx)

	created, err := fx.alice.Create(context.Background(), stake(1), validSelection())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = w.WaitForOpponent(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrContextDone)
}

func TestWaitForOpponentAbortsOnFatalError(t *testing.T) {
	fx := newFixture(t)
	w := newWatcher(fx)

	// A non-transient read error aborts the wait instead of retrying.
	_, err := w.WaitForOpponent(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWaitForSettlement(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	w := newWatcher(fx)

	snap := createAndJoin(t, fx)
	_, err := fx.alice.Start(ctx, snap.ID)
	require.NoError(t, err)
	fx.clk.Advance(121 * time.Second)
	_, err = fx.alice.Reveal(ctx, snap.ID)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = fx.bob.Reveal(ctx, snap.ID)
	}()

	settled, err := w.WaitForSettlement(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSettled, settled.Phase)
}

func TestWaitForWindowTicksAndReturns(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	w := newWatcher(fx)

	snap := createAndJoin(t, fx)
	started, err := fx.alice.Start(ctx, snap.ID)
	require.NoError(t, err)

	var remaining []time.Duration
	go func() {
		time.Sleep(20 * time.Millisecond)
		fx.clk.Advance(121 * time.Second)
	}()

	over, err := w.WaitForWindow(ctx, started.ID, func(r time.Duration) {
		remaining = append(remaining, r)
	})
	require.NoError(t, err)
	assert.True(t, over.Revealable(fx.clk.Now(), 120*time.Second))
	require.NotEmpty(t, remaining)
	assert.LessOrEqual(t, remaining[0], 120*time.Second)
}

func TestWaitForWindowStopsOnTerminalMatch(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	w := newWatcher(fx)

	created, err := fx.alice.Create(ctx, stake(1), validSelection())
	require.NoError(t, err)
	_, err = fx.alice.Cancel(ctx, created.ID)
	require.NoError(t, err)

	snap, err := w.WaitForWindow(ctx, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseExpired, snap.Phase)
}
