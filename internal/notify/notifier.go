// Package notify pushes match lifecycle events to operator channels
// (Telegram, Discord). Delivery is best-effort; a failed notification never
// blocks or fails the match operation that triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clapogame/clapobot/internal/domain"
)

// Event types operators can filter on.
const (
	EventMatchCreated = "match.created"
	EventMatchJoined  = "match.joined"
	EventMatchStarted = "match.started"
	EventMatchSettled = "match.settled"
	EventMatchExpired = "match.expired"
	EventRecovery     = "recovery.run"
)

// Sender is the interface each notification channel implements.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier dispatches match events to one or more Senders, filtered by an
// allowed event set. An empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// MatchCreated announces a newly opened match awaiting an opponent.
func (n *Notifier) MatchCreated(ctx context.Context, snap domain.MatchSnapshot) {
	n.notify(ctx, EventMatchCreated, "Match created",
		fmt.Sprintf("Match %d is open, stake %s #%d, waiting for an opponent.",
			snap.ID, snap.Players[0].Stake.Contract, snap.Players[0].Stake.TokenID))
}

// MatchJoined announces that both commitments are on the ledger.
func (n *Notifier) MatchJoined(ctx context.Context, snap domain.MatchSnapshot) {
	n.notify(ctx, EventMatchJoined, "Opponent joined",
		fmt.Sprintf("Match %d: both players committed, ready to start.", snap.ID))
}

// MatchStarted announces the price window opening.
func (n *Notifier) MatchStarted(ctx context.Context, snap domain.MatchSnapshot) {
	n.notify(ctx, EventMatchStarted, "Price window open",
		fmt.Sprintf("Match %d started at %s.", snap.ID, snap.StartedAt.Format("15:04:05 MST")))
}

// MatchSettled reports the final outcome.
func (n *Notifier) MatchSettled(ctx context.Context, res domain.MatchResult) {
	outcome := "lost"
	if res.Won {
		outcome = "won"
	}
	n.notify(ctx, EventMatchSettled, "Match settled",
		fmt.Sprintf("Match %d %s: %.2f vs %.2f against %s.",
			res.MatchID, outcome, res.OwnScore, res.OtherScore, res.Opponent))
}

// MatchExpired reports a match leaving play without settlement.
func (n *Notifier) MatchExpired(ctx context.Context, matchID uint64, reason string) {
	n.notify(ctx, EventMatchExpired, "Match expired",
		fmt.Sprintf("Match %d expired: %s. Stakes returned.", matchID, reason))
}

// RecoveryRan reports a recovery procedure having fired.
func (n *Notifier) RecoveryRan(ctx context.Context, detail string) {
	n.notify(ctx, EventRecovery, "Recovery ran", detail)
}

func (n *Notifier) notify(ctx context.Context, event, title, message string) {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return
	}
	n.dispatch(ctx, title, message)
}

// dispatch iterates over all senders. A single sender failure does not stop
// delivery to the rest; failures are logged, never returned to the caller.
func (n *Notifier) dispatch(ctx context.Context, title, message string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
}
