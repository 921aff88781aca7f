package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/untoldecay/RuneEcho/internal/types"
)

// RetryScore is the synthetic BM25 assigned to retry-injected candidates so
// downstream normalization treats them like lexical matches.
const RetryScore = -1.2

const retryMaxCount = 3

// RecordSearchFailure inserts a failure row for (entry, fingerprint), or
// bumps retry_count when the pair already exists and is under the cap.
// At the cap the call is a no-op.
func (s *Store) RecordSearchFailure(ctx context.Context, entryID, fingerprint string) error {
	if entryID == "" || fingerprint == "" {
		return nil
	}
	now := isoTime(time.Now())
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO echo_search_failures (entry_id, token_fingerprint, retry_count, first_failed_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (entry_id, token_fingerprint) DO UPDATE SET
			retry_count = retry_count + 1,
			last_retried_at = ?
		WHERE echo_search_failures.retry_count < %d
	`, retryMaxCount), entryID, fingerprint, now, now)
	if err != nil {
		return fmt.Errorf("failed to record search failure: %w", err)
	}
	return nil
}

// RetryCandidates returns preview entries whose failure rows match the
// fingerprint, are under the retry cap, are younger than 30 days, and are
// not already in the matched set. Each carries the synthetic score and the
// retry_source flag.
func (s *Store) RetryCandidates(ctx context.Context, fingerprint string, excludeIDs []string) ([]types.SearchResult, error) {
	if fingerprint == "" {
		return nil, nil
	}

	args := []interface{}{fingerprint, isoCutoff(time.Now(), failureMaxAgeDays)}
	query := fmt.Sprintf(`
		SELECT e.id, e.role, e.layer, e.date, e.source, e.tags,
		       substr(e.content, 1, %d), e.line_number, e.file_path
		FROM echo_search_failures f
		JOIN echo_entries e ON e.id = f.entry_id
		WHERE f.token_fingerprint = ?
		  AND f.retry_count < %d
		  AND f.first_failed_at >= ?
	`, previewLen, retryMaxCount)
	if len(excludeIDs) > 0 {
		query += fmt.Sprintf(" AND e.id NOT IN (%s)", inPlaceholders(len(excludeIDs)))
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch retry candidates: %w", err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		if err := rows.Scan(&r.ID, &r.Role, &r.Layer, &r.Date, &r.Source, &r.Tags,
			&r.Content, &r.LineNumber, &r.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan retry candidate: %w", err)
		}
		r.BM25 = RetryScore
		r.RetrySource = true
		results = append(results, r)
	}
	return results, rows.Err()
}

// ResetFailureOnMatch removes the failure row for a confirmed match.
func (s *Store) ResetFailureOnMatch(ctx context.Context, entryID, fingerprint string) error {
	if entryID == "" || fingerprint == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM echo_search_failures WHERE entry_id = ? AND token_fingerprint = ?
	`, entryID, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to reset search failure: %w", err)
	}
	return nil
}

// CleanupAgedFailures deletes failure rows older than 30 days and returns
// the count removed. Runs on every reindex and on roughly 1% of searches.
func (s *Store) CleanupAgedFailures(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM echo_search_failures WHERE first_failed_at < ?
	`, isoCutoff(time.Now(), failureMaxAgeDays))
	if err != nil {
		return 0, fmt.Errorf("failed to clean aged failures: %w", err)
	}
	return res.RowsAffected()
}

// FailureCount reports how many failure rows exist for an entry.
// Test and diagnostics helper.
func (s *Store) FailureCount(ctx context.Context, entryID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM echo_search_failures WHERE entry_id = ?
	`, entryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return n, nil
}
