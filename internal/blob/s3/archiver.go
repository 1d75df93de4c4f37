package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/clapogame/clapobot/internal/domain"
)

// Archiver pages old match history out of the primary store into object
// storage: query everything settled before the cutoff, upload it as JSONL,
// then prune the rows. Pruning only happens after the upload succeeded, so a
// failed run can be retried without losing records.
type Archiver struct {
	writer  domain.BlobWriter
	history domain.HistoryStore
	log     *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, history domain.HistoryStore, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		writer:  writer,
		history: history,
		log:     logger.With(slog.String("component", "archiver")),
	}
}

// Archive uploads every match settled before the cutoff and deletes the
// archived rows. Returns the number of matches archived.
func (a *Archiver) Archive(ctx context.Context, before time.Time) (int64, error) {
	results, err := a.history.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(results)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	deleted, err := a.history.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(results)), fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.log.Info("history archived",
		slog.String("path", path),
		slog.Int("matches", len(results)),
		slog.Int64("pruned", deleted))
	return int64(len(results)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff:
//
//	archive/matches/2025-01.jsonl
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/matches/%s.jsonl", before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL(results []domain.MatchResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range results {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
