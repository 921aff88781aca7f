package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/untoldecay/RuneEcho/internal/types"
)

// newTestStore opens a migrated store on a temp-dir database.
// File-based databases are more reliable than in-memory for connection
// pool scenarios.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := t.TempDir() + "/echoes.db"
	ctx := context.Background()
	store, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Fatalf("Failed to close test database: %v", cerr)
		}
	})

	return store
}

// testEntry builds an entry with sensible defaults. The id is derived the
// same way the indexer derives it.
func testEntry(role, layer, content string, lineNumber int) types.Entry {
	filePath := "/echoes/" + role + "/MEMORY.md"
	return types.Entry{
		ID:         types.EntryID(role, lineNumber, filePath),
		Role:       role,
		Layer:      layer,
		Date:       "2026-01-15",
		Tags:       "test entry",
		Content:    content,
		LineNumber: lineNumber,
		FilePath:   filePath,
	}
}

// seedEntries rebuilds the store with the given entries.
func seedEntries(t *testing.T, store *Store, entries []types.Entry) {
	t.Helper()
	if err := store.Rebuild(context.Background(), entries); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
}

// seedAccess writes n access rows for an entry.
func seedAccess(t *testing.T, store *Store, entryID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if _, err := store.RecordAccess(ctx, []string{entryID}, fmt.Sprintf("query %d", i)); err != nil {
			t.Fatalf("RecordAccess failed: %v", err)
		}
	}
}
