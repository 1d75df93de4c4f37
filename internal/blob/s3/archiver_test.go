package s3blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clapogame/clapobot/internal/domain"
)

type fakeWriter struct {
	err         error
	path        string
	contentType string
	body        []byte
}

func (w *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if w.err != nil {
		return w.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.path = path
	w.contentType = contentType
	w.body = body
	return nil
}

type fakeHistory struct {
	domain.HistoryStore

	results []domain.MatchResult
	deleted bool
}

func (h *fakeHistory) ListBefore(ctx context.Context, before time.Time) ([]domain.MatchResult, error) {
	return h.results, nil
}

func (h *fakeHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	h.deleted = true
	return int64(len(h.results)), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleResults() []domain.MatchResult {
	return []domain.MatchResult{
		{MatchID: 1, Wallet: "0xaaa", Opponent: "0xbbb", Won: true, OwnScore: 3.5},
		{MatchID: 2, Wallet: "0xaaa", Opponent: "0xccc", Won: false, OwnScore: -1.2},
	}
}

func TestArchiveUploadsAndPrunes(t *testing.T) {
	ctx := context.Background()
	writer := &fakeWriter{}
	history := &fakeHistory{results: sampleResults()}
	a := NewArchiver(writer, history, discardLogger())

	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	n, err := a.Archive(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, "archive/matches/2026-06.jsonl", writer.path)
	assert.Equal(t, "application/x-ndjson", writer.contentType)
	assert.True(t, history.deleted)

	lines := strings.Split(strings.TrimRight(string(writer.body), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"MatchID":1`)
	assert.Contains(t, lines[1], `"MatchID":2`)
}

func TestArchiveNothingToDo(t *testing.T) {
	writer := &fakeWriter{}
	history := &fakeHistory{}
	a := NewArchiver(writer, history, discardLogger())

	n, err := a.Archive(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, history.deleted, "no upload means no prune")
}

func TestArchiveKeepsRowsWhenUploadFails(t *testing.T) {
	writer := &fakeWriter{err: errors.New("bucket unreachable")}
	history := &fakeHistory{results: sampleResults()}
	a := NewArchiver(writer, history, discardLogger())

	_, err := a.Archive(context.Background(), time.Now())
	require.Error(t, err)
	assert.False(t, history.deleted, "rows must survive a failed upload")
}
