package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/untoldecay/RuneEcho/internal/types"
)

const previewLen = 200

// SearchFTS runs a MATCH query against the FTS index and returns candidates
// ordered by bm25 ascending (more negative = more relevant). The match string
// must come from the scorer's sanitizer; raw user text never reaches MATCH.
// Returned entries carry the 200-char content preview, not the full body.
func (s *Store) SearchFTS(ctx context.Context, match, role, layer string, limit int) ([]types.SearchResult, error) {
	if match == "" {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`
		SELECT e.id, e.role, e.layer, e.date, e.source, e.tags,
		       substr(e.content, 1, %d), e.line_number, e.file_path,
		       bm25(echo_entries_fts) AS score
		FROM echo_entries_fts
		JOIN echo_entries e ON e.rowid = echo_entries_fts.rowid
		WHERE echo_entries_fts MATCH ?
	`, previewLen))
	args := []interface{}{match}

	if role != "" {
		sb.WriteString(" AND e.role = ?")
		args = append(args, role)
	}
	if layer != "" {
		sb.WriteString(" AND e.layer = ?")
		args = append(args, strings.ToLower(layer))
	}
	sb.WriteString(" ORDER BY score ASC LIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		if err := rows.Scan(&r.ID, &r.Role, &r.Layer, &r.Date, &r.Source, &r.Tags,
			&r.Content, &r.LineNumber, &r.FilePath, &r.BM25); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
