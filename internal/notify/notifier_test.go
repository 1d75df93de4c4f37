package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clapogame/clapobot/internal/domain"
)

type captureSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (c *captureSender) Send(ctx context.Context, title, message string) error {
	if c.err != nil {
		return c.err
	}
	c.titles = append(c.titles, title)
	c.bodies = append(c.bodies, message)
	return nil
}

func (c *captureSender) Name() string { return c.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierDeliversToAllSenders(t *testing.T) {
	ctx := context.Background()
	first := &captureSender{name: "first"}
	second := &captureSender{name: "second"}
	n := NewNotifier([]Sender{first, second}, nil, discardLogger())

	n.MatchCreated(ctx, domain.MatchSnapshot{ID: 7})

	require.Len(t, first.titles, 1)
	require.Len(t, second.titles, 1)
	assert.Equal(t, "Match created", first.titles[0])
	assert.Contains(t, first.bodies[0], "Match 7")
}

func TestNotifierFiltersEvents(t *testing.T) {
	ctx := context.Background()
	sink := &captureSender{name: "sink"}
	n := NewNotifier([]Sender{sink}, []string{EventMatchSettled}, discardLogger())

	n.MatchCreated(ctx, domain.MatchSnapshot{ID: 1})
	n.MatchStarted(ctx, domain.MatchSnapshot{ID: 1, StartedAt: time.Now()})
	n.MatchSettled(ctx, domain.MatchResult{MatchID: 1, Won: true, OwnScore: 2.5, OtherScore: 1.0})

	require.Len(t, sink.titles, 1)
	assert.Equal(t, "Match settled", sink.titles[0])
	assert.Contains(t, sink.bodies[0], "won")
}

func TestNotifierSurvivesSenderFailure(t *testing.T) {
	ctx := context.Background()
	broken := &captureSender{name: "broken", err: errors.New("unreachable")}
	working := &captureSender{name: "working"}
	n := NewNotifier([]Sender{broken, working}, nil, discardLogger())

	n.MatchExpired(ctx, 3, "nobody joined")

	require.Len(t, working.titles, 1)
	assert.Contains(t, working.bodies[0], "Stakes returned")
}

func TestSettledOutcomeWording(t *testing.T) {
	ctx := context.Background()
	sink := &captureSender{name: "sink"}
	n := NewNotifier([]Sender{sink}, nil, discardLogger())

	n.MatchSettled(ctx, domain.MatchResult{MatchID: 9, Won: false, OwnScore: 1, OtherScore: 2})
	require.Len(t, sink.bodies, 1)
	assert.Contains(t, sink.bodies[0], "lost")
}
