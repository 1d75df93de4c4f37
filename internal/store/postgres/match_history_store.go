package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clapogame/clapobot/internal/domain"
)

// MatchHistoryStore implements domain.HistoryStore using PostgreSQL.
type MatchHistoryStore struct {
	pool *pgxpool.Pool
}

// NewMatchHistoryStore creates a MatchHistoryStore backed by the given pool.
func NewMatchHistoryStore(pool *pgxpool.Pool) *MatchHistoryStore {
	return &MatchHistoryStore{pool: pool}
}

const historySelectCols = `match_id, wallet, opponent, phase, own_score,
	other_score, won, stake_contract, stake_token_id, started_at, settled_at`

func scanHistoryRows(rows pgx.Rows) ([]domain.MatchResult, error) {
	var results []domain.MatchResult
	for rows.Next() {
		var (
			r         domain.MatchResult
			phase     int16
			startedAt *time.Time
		)
		if err := rows.Scan(
			&r.MatchID, &r.Wallet, &r.Opponent, &phase,
			&r.OwnScore, &r.OtherScore, &r.Won,
			&r.StakeRef.Contract, &r.StakeRef.TokenID,
			&startedAt, &r.SettledAt,
		); err != nil {
			return nil, err
		}
		r.Phase = domain.Phase(phase)
		if startedAt != nil {
			r.StartedAt = *startedAt
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Insert records a finished match. Re-inserting the same (match_id, wallet)
// pair is a no-op so retried resolutions stay idempotent.
func (s *MatchHistoryStore) Insert(ctx context.Context, res domain.MatchResult) error {
	const query = `
		INSERT INTO match_history (
			match_id, wallet, opponent, phase, own_score,
			other_score, won, stake_contract, stake_token_id,
			started_at, settled_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11
		) ON CONFLICT (match_id, wallet) DO NOTHING`

	var startedAt *time.Time
	if !res.StartedAt.IsZero() {
		startedAt = &res.StartedAt
	}

	_, err := s.pool.Exec(ctx, query,
		res.MatchID, res.Wallet, res.Opponent, int16(res.Phase),
		res.OwnScore, res.OtherScore, res.Won,
		res.StakeRef.Contract, res.StakeRef.TokenID,
		startedAt, res.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert match %d: %w", res.MatchID, err)
	}
	return nil
}

// ListByWallet returns the wallet's matches, newest first.
func (s *MatchHistoryStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.MatchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM match_history
		WHERE LOWER(wallet) = LOWER($1)
		ORDER BY settled_at DESC
		LIMIT $2 OFFSET $3`, historySelectCols)

	rows, err := s.pool.Query(ctx, query, wallet, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history for %s: %w", wallet, err)
	}
	defer rows.Close()

	results, err := scanHistoryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan history for %s: %w", wallet, err)
	}
	return results, nil
}

// ListBefore returns every match settled before the cutoff, oldest first.
// Used by the archiver to page matches out to object storage.
func (s *MatchHistoryStore) ListBefore(ctx context.Context, before time.Time) ([]domain.MatchResult, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM match_history
		WHERE settled_at < $1
		ORDER BY settled_at ASC`, historySelectCols)

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	results, err := scanHistoryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan history before %s: %w", before.Format(time.RFC3339), err)
	}
	return results, nil
}

// DeleteBefore removes matches settled before the cutoff and returns the
// number deleted.
func (s *MatchHistoryStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM match_history WHERE settled_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete history before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.HistoryStore = (*MatchHistoryStore)(nil)
