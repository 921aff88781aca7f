package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/untoldecay/RuneEcho/internal/types"
)

// UpsertGroup writes memberships for one group in a single transaction.
// Entry ids not present in the store are skipped rather than failing the
// whole call. similarities is parallel to entryIDs; missing values default
// to 1.0. Returns the number of memberships written.
func (s *Store) UpsertGroup(ctx context.Context, groupID string, entryIDs []string, similarities []float64) (int, error) {
	if len(entryIDs) == 0 {
		return 0, nil
	}

	existing, err := s.existingIDs(ctx, entryIDs)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin group write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := isoTime(time.Now())
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO semantic_groups (group_id, entry_id, similarity, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare group insert: %w", err)
	}

	written := 0
	for i, id := range entryIDs {
		if !existing[id] {
			continue
		}
		sim := 1.0
		if i < len(similarities) {
			sim = clamp01(similarities[i])
		}
		if _, err := stmt.ExecContext(ctx, groupID, id, sim, now); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("failed to insert membership: %w", err)
		}
		written++
	}
	if err := stmt.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit group write: %w", err)
	}
	return written, nil
}

// WriteMemberships bulk-writes grouper output atomically: one transaction,
// INSERT OR REPLACE per row.
func (s *Store) WriteMemberships(ctx context.Context, members []types.GroupMember) error {
	if len(members) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin group write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := isoTime(time.Now())
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO semantic_groups (group_id, entry_id, similarity, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare group insert: %w", err)
	}
	for _, m := range members {
		createdAt := m.CreatedAt
		if createdAt == "" {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx, m.GroupID, m.EntryID, clamp01(m.Similarity), createdAt); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("failed to insert membership: %w", err)
		}
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group write: %w", err)
	}
	return nil
}

// GroupIDsForEntries returns the distinct group ids any of the entries
// belong to.
func (s *Store) GroupIDsForEntries(ctx context.Context, entryIDs []string) ([]string, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(entryIDs))
	for i, id := range entryIDs {
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT DISTINCT group_id FROM semantic_groups
		WHERE entry_id IN (%s) ORDER BY group_id
	`, inPlaceholders(len(entryIDs)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group ids: %w", err)
	}
	defer rows.Close()

	var groupIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		groupIDs = append(groupIDs, id)
	}
	return groupIDs, rows.Err()
}

// GroupMembersExcluding fetches preview entries for members of the given
// groups, skipping excluded ids, deduplicated across groups. One batched
// query for both IN lists.
func (s *Store) GroupMembersExcluding(ctx context.Context, groupIDs, excludeIDs []string) ([]types.SearchResult, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(groupIDs)+len(excludeIDs))
	for _, id := range groupIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT g.entry_id, e.role, e.layer, e.date, e.source, e.tags,
		       substr(e.content, 1, %d), e.line_number, e.file_path
		FROM semantic_groups g
		JOIN echo_entries e ON e.id = g.entry_id
		WHERE g.group_id IN (%s)
	`, previewLen, inPlaceholders(len(groupIDs)))
	if len(excludeIDs) > 0 {
		query += fmt.Sprintf(" AND g.entry_id NOT IN (%s)", inPlaceholders(len(excludeIDs)))
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group members: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var results []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		if err := rows.Scan(&r.ID, &r.Role, &r.Layer, &r.Date, &r.Source, &r.Tags,
			&r.Content, &r.LineNumber, &r.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		results = append(results, r)
	}
	return results, rows.Err()
}

// existingIDs filters ids down to those present in echo_entries.
func (s *Store) existingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id FROM echo_entries WHERE id IN (%s)`, inPlaceholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to check entry ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
