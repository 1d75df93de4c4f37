package match

import (
	"context"
	"log/slog"
	"time"

	"github.com/clapogame/clapobot/internal/domain"
)

// Watcher polls the ledger for phase transitions the opponent drives. The
// local clock is only ever a display aid; every decision below re-reads the
// ledger.
type Watcher struct {
	ledger   domain.Ledger
	interval time.Duration
	duration time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewWatcher builds a Watcher. interval zero means 2s.
func NewWatcher(ledger domain.Ledger, interval, duration time.Duration, logger *slog.Logger) *Watcher {
	if interval == 0 {
		interval = 2 * time.Second
	}
	if duration == 0 {
		duration = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		ledger:   ledger,
		interval: interval,
		duration: duration,
		now:      time.Now,
		log:      logger.With(slog.String("component", "watcher")),
	}
}

// WaitForOpponent blocks until the match leaves the Created phase: an
// opponent joined, the match was cancelled, or it expired. Returns the first
// snapshot past Created.
func (w *Watcher) WaitForOpponent(ctx context.Context, matchID uint64) (domain.MatchSnapshot, error) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	waits := 0
	for {
		snap, err := w.ledger.GetMatch(ctx, matchID)
		if err != nil {
			if domain.IsTransient(err) {
				w.log.Warn("poll failed, will retry", slog.Uint64("match_id", matchID), slog.Any("error", err))
			} else {
				return domain.MatchSnapshot{}, err
			}
		} else if snap.Phase != domain.PhaseCreated {
			return snap, nil
		}

		waits++
		if waits%15 == 0 {
			w.log.Info("still waiting for opponent",
				slog.Uint64("match_id", matchID),
				slog.Duration("waited", time.Duration(waits)*w.interval))
		}
		select {
		case <-ctx.Done():
			return domain.MatchSnapshot{}, domain.ErrContextDone
		case <-ticker.C:
		}
	}
}

// WaitForWindow blocks until the ledger-owned price window has elapsed,
// ticking the optional callback with the remaining time once per second.
// Returns the snapshot that first reported the window as over.
func (w *Watcher) WaitForWindow(ctx context.Context, matchID uint64, onTick func(remaining time.Duration)) (domain.MatchSnapshot, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		snap, err := w.ledger.GetMatch(ctx, matchID)
		if err != nil {
			if !domain.IsTransient(err) {
				return domain.MatchSnapshot{}, err
			}
			w.log.Warn("poll failed, will retry", slog.Uint64("match_id", matchID), slog.Any("error", err))
		} else {
			if snap.Phase.Terminal() || snap.Revealable(w.now(), w.duration) {
				return snap, nil
			}
			if onTick != nil && !snap.StartedAt.IsZero() {
				remaining := w.duration - w.now().Sub(snap.StartedAt)
				if remaining < 0 {
					remaining = 0
				}
				onTick(remaining)
			}
		}
		select {
		case <-ctx.Done():
			return domain.MatchSnapshot{}, domain.ErrContextDone
		case <-ticker.C:
		}
	}
}

// WaitForSettlement blocks until the match reaches a terminal phase. Used
// after our reveal while the opponent's reveal is still outstanding.
func (w *Watcher) WaitForSettlement(ctx context.Context, matchID uint64) (domain.MatchSnapshot, error) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		snap, err := w.ledger.GetMatch(ctx, matchID)
		if err != nil {
			if !domain.IsTransient(err) {
				return domain.MatchSnapshot{}, err
			}
			w.log.Warn("poll failed, will retry", slog.Uint64("match_id", matchID), slog.Any("error", err))
		} else if snap.Phase.Terminal() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return domain.MatchSnapshot{}, domain.ErrContextDone
		case <-ticker.C:
		}
	}
}
