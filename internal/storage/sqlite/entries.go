package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/untoldecay/RuneEcho/internal/types"
)

const (
	accessLogMaxAgeDays = 180
	failureMaxAgeDays   = 30
)

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func isoCutoff(now time.Time, days int) string {
	return isoTime(now.AddDate(0, 0, -days))
}

// inPlaceholders returns "?,?,...,?" with n markers.
func inPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Rebuild atomically replaces the entire entry set: clear entries, clear the
// FTS shadow tables, reinsert, rebuild FTS from the content table, prune
// orphaned and aged access rows, prune aged and orphaned failure rows, stamp
// last_indexed. Any error rolls the whole transaction back, leaving the
// previous index intact.
func (s *Store) Rebuild(ctx context.Context, entries []types.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM echo_entries`); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO echo_entries_fts(echo_entries_fts) VALUES('delete-all')`); err != nil {
		return fmt.Errorf("failed to clear FTS index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO echo_entries (id, role, layer, date, source, tags, content, line_number, file_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Role, e.Layer, e.Date, e.Source, e.Tags, e.Content, e.LineNumber, e.FilePath); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close insert statement: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO echo_entries_fts(echo_entries_fts) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("failed to rebuild FTS index: %w", err)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `DELETE FROM echo_access_log WHERE entry_id NOT IN (SELECT id FROM echo_entries)`); err != nil {
		return fmt.Errorf("failed to prune orphaned access rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM echo_access_log WHERE accessed_at < ?`, isoCutoff(now, accessLogMaxAgeDays)); err != nil {
		return fmt.Errorf("failed to prune aged access rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM echo_search_failures WHERE first_failed_at < ?`, isoCutoff(now, failureMaxAgeDays)); err != nil {
		return fmt.Errorf("failed to prune aged failures: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM echo_search_failures WHERE entry_id NOT IN (SELECT id FROM echo_entries)`); err != nil {
		return fmt.Errorf("failed to prune orphaned failures: %w", err)
	}
	if err := setMetaTx(ctx, tx, metaLastIndexed, isoTime(now)); err != nil {
		return fmt.Errorf("failed to stamp last_indexed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rebuild: %w", err)
	}
	return nil
}

// CountEntries returns the number of indexed entries.
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM echo_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// EntriesByIDs fetches full entries for the given ids, preserving the input
// order. Unknown ids are silently absent from the result.
func (s *Store) EntriesByIDs(ctx context.Context, ids []string) ([]types.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, role, layer, date, source, tags, content, line_number, file_path
		FROM echo_entries WHERE id IN (%s)
	`, inPlaceholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entries: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]types.Entry, len(ids))
	for rows.Next() {
		var e types.Entry
		if err := rows.Scan(&e.ID, &e.Role, &e.Layer, &e.Date, &e.Source, &e.Tags, &e.Content, &e.LineNumber, &e.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]types.Entry, 0, len(byID))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			result = append(result, e)
		}
	}
	return result, nil
}

// AllEntries returns every indexed entry with full content, ordered by id.
// Used by the grouper, which needs the complete corpus.
func (s *Store) AllEntries(ctx context.Context) ([]types.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, layer, date, source, tags, content, line_number, file_path
		FROM echo_entries ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []types.Entry
	for rows.Next() {
		var e types.Entry
		if err := rows.Scan(&e.ID, &e.Role, &e.Layer, &e.Date, &e.Source, &e.Tags, &e.Content, &e.LineNumber, &e.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats aggregates store totals for echo_stats.
func (s *Store) Stats(ctx context.Context) (*types.Stats, error) {
	stats := &types.Stats{
		ByLayer: make(map[string]int),
		ByRole:  make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM echo_entries`).Scan(&stats.TotalEntries); err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM echo_access_log`).Scan(&stats.TotalAccess); err != nil {
		return nil, fmt.Errorf("failed to count access rows: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT group_id) FROM semantic_groups`).Scan(&stats.TotalGroups); err != nil {
		return nil, fmt.Errorf("failed to count groups: %w", err)
	}

	if err := s.countBy(ctx, `SELECT layer, COUNT(*) FROM echo_entries GROUP BY layer`, stats.ByLayer); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, `SELECT role, COUNT(*) FROM echo_entries GROUP BY role`, stats.ByRole); err != nil {
		return nil, err
	}

	lastIndexed, err := s.GetMeta(ctx, metaLastIndexed)
	if err != nil {
		return nil, err
	}
	stats.LastIndexed = lastIndexed
	return stats, nil
}

func (s *Store) countBy(ctx context.Context, query string, dest map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to aggregate: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to scan aggregate: %w", err)
		}
		dest[key] = n
	}
	return rows.Err()
}
