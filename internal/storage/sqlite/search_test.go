package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/untoldecay/RuneEcho/internal/types"
)

func TestSearchFTSOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []types.Entry{
		testEntry("reviewer", "etched", "authentication authentication authentication handling", 3),
		testEntry("reviewer", "notes", "authentication mentioned once among many other words in a longer body of text", 11),
		testEntry("builder", "traced", "nothing relevant here at all", 3),
	}
	seedEntries(t, store, entries)

	results, err := store.SearchFTS(ctx, "authentication", "", "", 10)
	if err != nil {
		t.Fatalf("SearchFTS failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// bm25 ascending: more negative first.
	if results[0].BM25 > results[1].BM25 {
		t.Errorf("results not ordered by bm25 asc: %f then %f", results[0].BM25, results[1].BM25)
	}
	for _, r := range results {
		if r.BM25 >= 0 {
			t.Errorf("bm25 score should be negative for a match, got %f", r.BM25)
		}
	}
}

func TestSearchFTSFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []types.Entry{
		testEntry("reviewer", "etched", "authentication boundary checks", 3),
		testEntry("builder", "notes", "authentication code generation", 3),
	}
	seedEntries(t, store, entries)

	byRole, err := store.SearchFTS(ctx, "authentication", "builder", "", 10)
	if err != nil {
		t.Fatalf("SearchFTS failed: %v", err)
	}
	if len(byRole) != 1 || byRole[0].Role != "builder" {
		t.Errorf("role filter broken: got %d results", len(byRole))
	}

	byLayer, err := store.SearchFTS(ctx, "authentication", "", "Etched", 10)
	if err != nil {
		t.Fatalf("SearchFTS failed: %v", err)
	}
	if len(byLayer) != 1 || byLayer[0].Layer != "etched" {
		t.Errorf("layer filter broken (should lowercase): got %d results", len(byLayer))
	}
}

func TestSearchFTSPreviewTruncation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("tokens and more tokens everywhere ", 20)
	seedEntries(t, store, []types.Entry{testEntry("reviewer", "etched", long, 3)})

	results, err := store.SearchFTS(ctx, "tokens", "", "", 10)
	if err != nil {
		t.Fatalf("SearchFTS failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(results[0].Content) != previewLen {
		t.Errorf("preview length = %d, want %d", len(results[0].Content), previewLen)
	}
}

func TestSearchFTSEmptyMatch(t *testing.T) {
	store := newTestStore(t)

	seedEntries(t, store, []types.Entry{testEntry("reviewer", "etched", "content", 3)})

	results, err := store.SearchFTS(context.Background(), "", "", "", 10)
	if err != nil {
		t.Fatalf("SearchFTS failed: %v", err)
	}
	if results != nil {
		t.Errorf("empty match string should return no results, got %d", len(results))
	}
}

func TestSearchFTSSanitizedTokensAreSafe(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedEntries(t, store, []types.Entry{testEntry("reviewer", "etched", "plain content", 3)})

	// The sanitizer only ever emits [A-Za-z0-9_]+ tokens joined by OR.
	// Lowercased operator words are plain terms to FTS5, not syntax.
	for _, match := range []string{"foo OR bar", "near OR not OR and", "x1 OR 42"} {
		if _, err := store.SearchFTS(ctx, match, "", "", 10); err != nil {
			t.Errorf("sanitized match %q errored: %v", match, err)
		}
	}
}
