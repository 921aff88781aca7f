// Package types defines the core data structures shared across the echo service.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Layer names as stored in the database (always lowercased).
// The header in MEMORY.md carries the capitalized form.
const (
	LayerEtched       = "etched"
	LayerInscribed    = "inscribed"
	LayerTraced       = "traced"
	LayerNotes        = "notes"
	LayerObservations = "observations"
)

// KnownLayer reports whether layer is one of the five recognized layer names.
func KnownLayer(layer string) bool {
	switch layer {
	case LayerEtched, LayerInscribed, LayerTraced, LayerNotes, LayerObservations:
		return true
	}
	return false
}

// Entry is one echo: a section of a role-scoped MEMORY.md file.
type Entry struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	Layer      string `json:"layer"`
	Date       string `json:"date,omitempty"`
	Source     string `json:"source,omitempty"`
	Tags       string `json:"tags,omitempty"`
	Content    string `json:"content"`
	LineNumber int    `json:"line_number"`
	FilePath   string `json:"file_path"`
}

// EntryID derives the stable 16-hex-digit identifier for an entry.
// Deterministic over (role, line number, file path) so ids survive a
// rebuild as long as the header has not moved.
func EntryID(role string, lineNumber int, filePath string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", role, lineNumber, filePath)))
	return hex.EncodeToString(sum[:])[:16]
}

// ScoreBreakdown carries the five ranking factors of a scored entry.
type ScoreBreakdown struct {
	Relevance  float64 `json:"relevance"`
	Importance float64 `json:"importance"`
	Recency    float64 `json:"recency"`
	Proximity  float64 `json:"proximity"`
	Frequency  float64 `json:"frequency"`
}

// SearchResult is an entry as it travels through the retrieval pipeline and
// out to the tool caller. Content holds the 200-char preview during search;
// echo_details responses carry the full content instead.
type SearchResult struct {
	Entry
	BM25            float64        `json:"-"`
	CompositeScore  float64        `json:"composite_score"`
	Scores          ScoreBreakdown `json:"scores"`
	RerankScore     *float64       `json:"rerank_score,omitempty"`
	RetrySource     bool           `json:"retry_source,omitempty"`
	ExpansionSource string         `json:"expansion_source,omitempty"`
}

// GroupMember is one (group, entry) membership row.
type GroupMember struct {
	GroupID    string  `json:"group_id"`
	EntryID    string  `json:"entry_id"`
	Similarity float64 `json:"similarity"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// Stats summarizes the store for the echo_stats tool.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	TotalAccess  int            `json:"total_access_rows"`
	TotalGroups  int            `json:"total_groups"`
	ByLayer      map[string]int `json:"by_layer"`
	ByRole       map[string]int `json:"by_role"`
	LastIndexed  string         `json:"last_indexed,omitempty"`
}

// ReindexResult reports what a rebuild did.
type ReindexResult struct {
	EntriesIndexed       int      `json:"entries_indexed"`
	TimeMS               int64    `json:"time_ms"`
	Roles                []string `json:"roles"`
	ObservationsPromoted int      `json:"observations_promoted,omitempty"`
	GroupsCreated        int      `json:"groups_created,omitempty"`
}
