package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clapogame/clapobot/internal/domain"
	"github.com/clapogame/clapobot/internal/vault"
)

// CreateMode opens a new match with the configured stake and portfolio, then
// drives it to resolution. An already-active match is resumed instead.
func (a *App) CreateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting create mode")

	return a.withFeed(ctx, deps, func(ctx context.Context) error {
		snap, resumed, err := a.resumeOrZero(ctx, deps)
		if err != nil {
			return err
		}
		if !resumed {
			snap, err = a.createMatch(ctx, deps)
			if err != nil {
				return err
			}
		}
		return a.driveMatch(ctx, deps, snap)
	})
}

// JoinMode joins the configured open match and drives it to resolution.
func (a *App) JoinMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting join mode",
		slog.Int64("match_id", a.cfg.Join.MatchID))

	return a.withFeed(ctx, deps, func(ctx context.Context) error {
		snap, resumed, err := a.resumeOrZero(ctx, deps)
		if err != nil {
			return err
		}
		if !resumed {
			snap, err = deps.Machine.Join(ctx, uint64(a.cfg.Join.MatchID), stakeRef(a.cfg), selection(a.cfg.Portfolio))
			if err != nil {
				return err
			}
			deps.Notifier.MatchJoined(ctx, snap)
		}
		return a.driveMatch(ctx, deps, snap)
	})
}

// AutoMode is the long-running mode: resume whatever is active, otherwise
// run recovery and open a fresh match, then drive matches back to back.
func (a *App) AutoMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting auto mode")

	return a.withFeed(ctx, deps, func(ctx context.Context) error {
		for {
			snap, resumed, err := a.resumeOrZero(ctx, deps)
			if err != nil {
				return err
			}
			if !resumed {
				if _, err := deps.Coordinator.Run(ctx); err != nil {
					return err
				}
				snap, err = a.createMatch(ctx, deps)
				if err != nil {
					return err
				}
			}
			if err := a.driveMatch(ctx, deps, snap); err != nil {
				return err
			}

			a.archiveHistory(ctx, deps)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
		}
	})
}

// RecoverMode runs the recovery procedures once and exits. When a target
// match is configured it is force-expired instead.
func (a *App) RecoverMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting recover mode")

	if id := a.cfg.Recover.MatchID; id > 0 {
		snap, err := deps.Coordinator.ForceExpire(ctx, uint64(id))
		if err != nil {
			return err
		}
		deps.Notifier.MatchExpired(ctx, snap.ID, "force-expired past the staleness threshold")
		deps.Notifier.RecoveryRan(ctx, fmt.Sprintf("Force-expired match %d.", snap.ID))
		return nil
	}

	finding, err := deps.Coordinator.Run(ctx)
	if err != nil {
		return err
	}
	if finding.MatchID != 0 {
		deps.Notifier.RecoveryRan(ctx, fmt.Sprintf(
			"Inspected match %d: phase %s, age %s, abandoned=%t, stuck=%t.",
			finding.MatchID, finding.Phase, finding.Age.Round(time.Second),
			finding.Abandoned, finding.Stuck))
	} else {
		deps.Notifier.RecoveryRan(ctx, "No active match; cleared any stale local state.")
	}
	return nil
}

// HistoryMode lists the wallet's recorded matches and exits.
func (a *App) HistoryMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting history mode")

	if deps.History == nil {
		return fmt.Errorf("app: history mode requires postgres")
	}

	wallet := deps.Address
	if wallet == "" {
		wallet = a.cfg.Wallet.Address
	}
	if wallet == "" {
		return fmt.Errorf("app: history mode requires wallet.address")
	}

	results, err := deps.History.ListByWallet(ctx, wallet, domain.ListOpts{Limit: 50})
	if err != nil {
		return err
	}

	wins := 0
	for _, r := range results {
		if r.Won {
			wins++
		}
		a.logger.InfoContext(ctx, "match",
			slog.Uint64("match_id", r.MatchID),
			slog.String("phase", r.Phase.String()),
			slog.Bool("won", r.Won),
			slog.Float64("own_score", r.OwnScore),
			slog.Float64("other_score", r.OtherScore),
			slog.String("opponent", r.Opponent),
			slog.Time("settled_at", r.SettledAt),
		)
	}
	a.logger.InfoContext(ctx, "history summary",
		slog.Int("matches", len(results)),
		slog.Int("wins", wins),
	)
	return nil
}

// withFeed runs fn alongside the oracle price feed, when one is configured.
func (a *App) withFeed(ctx context.Context, deps *Dependencies, fn func(context.Context) error) error {
	if deps.Feed == nil {
		return fn(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	feedCtx, stopFeed := context.WithCancel(ctx)
	g.Go(func() error {
		err := deps.Feed.Run(feedCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer stopFeed()
		return fn(ctx)
	})
	return g.Wait()
}

// resumeOrZero reconciles local state with the ledger. Returns the live
// snapshot and true when a match was resumed.
func (a *App) resumeOrZero(ctx context.Context, deps *Dependencies) (domain.MatchSnapshot, bool, error) {
	snap, err := deps.Machine.Resume(ctx)
	if errors.Is(err, domain.ErrNoActiveMatch) {
		return domain.MatchSnapshot{}, false, nil
	}
	if err != nil {
		return domain.MatchSnapshot{}, false, err
	}
	return snap, true, nil
}

func (a *App) createMatch(ctx context.Context, deps *Dependencies) (domain.MatchSnapshot, error) {
	snap, err := deps.Machine.Create(ctx, stakeRef(a.cfg), selection(a.cfg.Portfolio))
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	deps.Notifier.MatchCreated(ctx, snap)
	return snap, nil
}

// driveMatch walks a match from its current phase to a terminal one. Every
// transition is ledger-confirmed; the loop re-dispatches on the snapshot the
// confirming read returned.
func (a *App) driveMatch(ctx context.Context, deps *Dependencies, snap domain.MatchSnapshot) error {
	matchID := snap.ID
	var finalScore float64

	for !snap.Phase.Terminal() {
		var err error

		switch snap.Phase {
		case domain.PhaseCreated:
			snap, err = a.awaitOpponent(ctx, deps, matchID)

		case domain.PhaseCommitted:
			snap, err = deps.Machine.Start(ctx, matchID)
			if err == nil {
				deps.Notifier.MatchStarted(ctx, snap)
			}

		case domain.PhaseStarted, domain.PhaseEnded:
			snap, err = a.playWindow(ctx, deps, matchID, &finalScore)
		}

		if err != nil {
			if domain.IsTransient(err) {
				a.logger.WarnContext(ctx, "transient failure, re-reading and retrying",
					slog.Uint64("match_id", matchID),
					slog.Any("error", err))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(2 * time.Second):
				}
				snap, err = deps.Machine.Snapshot(ctx, matchID)
				if err != nil {
					return err
				}
				continue
			}
			return err
		}
	}

	return a.finish(ctx, deps, snap, finalScore)
}

// awaitOpponent waits out the opponent's arrival, bounded by the grace
// period. An abandoned match is cancelled and the stake reclaimed.
func (a *App) awaitOpponent(ctx context.Context, deps *Dependencies, matchID uint64) (domain.MatchSnapshot, error) {
	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.Game.Grace.Duration)
	defer cancel()

	snap, err := deps.Watcher.WaitForOpponent(waitCtx, matchID)
	if errors.Is(err, domain.ErrContextDone) && ctx.Err() == nil {
		a.logger.InfoContext(ctx, "no opponent within the grace period, cancelling",
			slog.Uint64("match_id", matchID))
		snap, err = deps.Machine.Cancel(ctx, matchID)
		if err != nil {
			return domain.MatchSnapshot{}, err
		}
		deps.Notifier.MatchExpired(ctx, matchID, "no opponent joined within the grace period")
		return snap, nil
	}
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if snap.Phase == domain.PhaseCommitted {
		deps.Notifier.MatchJoined(ctx, snap)
	}
	return snap, nil
}

// playWindow rides out the price window with a live countdown and
// provisional score, then reveals and waits for settlement. The final
// provisional score is written to finalScore before the secret is cleared.
func (a *App) playWindow(ctx context.Context, deps *Dependencies, matchID uint64, finalScore *float64) (domain.MatchSnapshot, error) {
	sel, open := a.openScoring(ctx, deps, matchID)

	lastLog := time.Now()
	snap, err := deps.Watcher.WaitForWindow(ctx, matchID, func(remaining time.Duration) {
		if time.Since(lastLog) < 15*time.Second {
			return
		}
		lastLog = time.Now()

		attrs := []any{
			slog.Uint64("match_id", matchID),
			slog.Duration("remaining", remaining.Round(time.Second)),
		}
		if open != nil {
			if score, err := deps.Scorer.Live(ctx, sel, open); err == nil {
				attrs = append(attrs, slog.Float64("provisional_score", score.Total))
			}
		}
		a.logger.InfoContext(ctx, "price window running", attrs...)
	})
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if open != nil {
		if score, scoreErr := deps.Scorer.Live(ctx, sel, open); scoreErr == nil {
			*finalScore = score.Total
		}
	}
	if snap.Phase.Terminal() {
		return snap, nil
	}

	snap, err = deps.Machine.Reveal(ctx, matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	if snap.Phase.Terminal() {
		return snap, nil
	}

	a.logger.InfoContext(ctx, "revealed, waiting for opponent's reveal",
		slog.Uint64("match_id", matchID))
	if _, err := deps.Watcher.WaitForSettlement(ctx, matchID); err != nil {
		return domain.MatchSnapshot{}, err
	}
	// Reveal on a terminal snapshot clears the secret and session.
	return deps.Machine.Reveal(ctx, matchID)
}

// openScoring loads our selection and captures baseline prices for the live
// score display. Both are best-effort; scoring is skipped without a feed.
func (a *App) openScoring(ctx context.Context, deps *Dependencies, matchID uint64) (domain.Selection, map[string]float64) {
	secret, err := deps.Vault.Load(ctx, vault.MatchKey(matchID))
	if err != nil {
		return domain.Selection{}, nil
	}
	sel := secret.Selection()

	open, err := deps.Scorer.OpenPrices(ctx, sel.Symbols)
	if err != nil {
		a.logger.DebugContext(ctx, "no baseline prices, live scoring disabled",
			slog.Any("error", err))
		return sel, nil
	}
	return sel, open
}

// finish records and announces a terminal match.
func (a *App) finish(ctx context.Context, deps *Dependencies, snap domain.MatchSnapshot, ownScore float64) error {
	a.logger.InfoContext(ctx, "match resolved",
		slog.Uint64("match_id", snap.ID),
		slog.String("phase", snap.Phase.String()))

	if snap.Phase == domain.PhaseExpired {
		deps.Notifier.MatchExpired(ctx, snap.ID, "match expired")
		return nil
	}

	res := deps.Machine.Result(snap, ownScore, 0)

	if deps.History != nil {
		if err := deps.History.Insert(ctx, res); err != nil {
			a.logger.WarnContext(ctx, "history insert failed",
				slog.Uint64("match_id", snap.ID),
				slog.Any("error", err))
		}
	}
	deps.Notifier.MatchSettled(ctx, res)
	return nil
}

// archiveHistory pages old history out to object storage when configured.
func (a *App) archiveHistory(ctx context.Context, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	cutoff := retentionCutoff(a.cfg.Archive.RetentionDays)
	if _, err := deps.Archiver.Archive(ctx, cutoff); err != nil {
		a.logger.WarnContext(ctx, "history archive failed", slog.Any("error", err))
	}
}
