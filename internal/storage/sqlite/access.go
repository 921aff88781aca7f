package sqlite

import (
	"context"
	"fmt"
	"time"
)

const (
	accessLogCap      = 100000
	accessLogKeep     = 90000
	accessCountsLimit = 200
	queryMaxLen       = 500
)

// RecordAccess appends one access row per entry id and enforces the log cap:
// past 100k rows, only the newest 90k by accessed_at survive. Returns the
// number of rows written.
func (s *Store) RecordAccess(ctx context.Context, entryIDs []string, query string) (int, error) {
	if len(entryIDs) == 0 {
		return 0, nil
	}
	if len(query) > queryMaxLen {
		query = query[:queryMaxLen]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin access write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := isoTime(time.Now())
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO echo_access_log (entry_id, accessed_at, query) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare access insert: %w", err)
	}
	for _, id := range entryIDs {
		if _, err := stmt.ExecContext(ctx, id, now, query); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("failed to insert access row: %w", err)
		}
	}
	if err := stmt.Close(); err != nil {
		return 0, err
	}

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM echo_access_log`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count access rows: %w", err)
	}
	if total > accessLogCap {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM echo_access_log WHERE id NOT IN (
				SELECT id FROM echo_access_log ORDER BY accessed_at DESC, id DESC LIMIT %d
			)
		`, accessLogKeep))
		if err != nil {
			return 0, fmt.Errorf("failed to prune access log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit access write: %w", err)
	}
	return len(entryIDs), nil
}

// AccessCounts returns per-entry access totals for up to 200 ids in a single
// IN query. Ids beyond the cap are dropped; frequency scoring for oversized
// candidate sets is sampled, not exact.
func (s *Store) AccessCounts(ctx context.Context, entryIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(entryIDs) == 0 {
		return counts, nil
	}
	if len(entryIDs) > accessCountsLimit {
		entryIDs = entryIDs[:accessCountsLimit]
	}

	args := make([]interface{}, len(entryIDs))
	for i, id := range entryIDs {
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT entry_id, COUNT(*) FROM echo_access_log
		WHERE entry_id IN (%s) GROUP BY entry_id
	`, inPlaceholders(len(entryIDs)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch access counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan access count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// CountAccessRows returns the access log size.
func (s *Store) CountAccessRows(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM echo_access_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count access rows: %w", err)
	}
	return n, nil
}

// PruneAccessBefore deletes access rows older than the cutoff and returns
// the number removed. Maintenance path for the prune command.
func (s *Store) PruneAccessBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM echo_access_log WHERE accessed_at < ?`, isoTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune access rows: %w", err)
	}
	return res.RowsAffected()
}

// PromotionCandidate is an observations-layer entry accessed often enough to
// graduate to inscribed.
type PromotionCandidate struct {
	EntryID     string
	FilePath    string
	LineNumber  int
	AccessCount int
}

// PromotionCandidates returns observations entries with at least minAccess
// logged accesses.
func (s *Store) PromotionCandidates(ctx context.Context, minAccess int) ([]PromotionCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.file_path, e.line_number, COUNT(a.id) AS n
		FROM echo_entries e
		JOIN echo_access_log a ON a.entry_id = e.id
		WHERE e.layer = 'observations'
		GROUP BY e.id, e.file_path, e.line_number
		HAVING COUNT(a.id) >= ?
		ORDER BY e.file_path, e.line_number
	`, minAccess)
	if err != nil {
		return nil, fmt.Errorf("failed to query promotion candidates: %w", err)
	}
	defer rows.Close()

	var candidates []PromotionCandidate
	for rows.Next() {
		var c PromotionCandidate
		if err := rows.Scan(&c.EntryID, &c.FilePath, &c.LineNumber, &c.AccessCount); err != nil {
			return nil, fmt.Errorf("failed to scan promotion candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
