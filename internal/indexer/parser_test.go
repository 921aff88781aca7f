package indexer

import (
	"strings"
	"testing"

	"github.com/untoldecay/RuneEcho/internal/types"
)

const testFilePath = "/echoes/reviewer/MEMORY.md"

func parse(t *testing.T, content string) []types.Entry {
	t.Helper()
	return ParseMemoryFile("reviewer", testFilePath, []byte(content))
}

func TestParseBasicEntry(t *testing.T) {
	file := `## Etched — JWT validation rules (2026-01-15)
**Source**: ` + "`src/auth/jwt.go`" + `
Refresh tokens rotate on every use.
Expiry is 15 minutes for access tokens.
`
	entries := parse(t, file)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Layer != "etched" {
		t.Errorf("layer = %q, want etched", e.Layer)
	}
	if e.Tags != "JWT validation rules" {
		t.Errorf("tags = %q", e.Tags)
	}
	if e.Date != "2026-01-15" {
		t.Errorf("date = %q", e.Date)
	}
	if e.Source != "src/auth/jwt.go" {
		t.Errorf("source = %q", e.Source)
	}
	if e.LineNumber != 1 {
		t.Errorf("line number = %d, want 1", e.LineNumber)
	}
	want := "Refresh tokens rotate on every use.\nExpiry is 15 minutes for access tokens."
	if e.Content != want {
		t.Errorf("content = %q, want %q", e.Content, want)
	}
	if len(e.ID) != 16 {
		t.Errorf("id = %q, want 16 hex chars", e.ID)
	}
	if e.ID != types.EntryID("reviewer", 1, testFilePath) {
		t.Errorf("id not derived from role|line|path")
	}
}

func TestParseSeparatorVariants(t *testing.T) {
	for _, sep := range []string{"—", "–", "-"} {
		file := "## Notes " + sep + " dash handling (2026-02-01)\nbody text here\n"
		entries := parse(t, file)
		if len(entries) != 1 {
			t.Errorf("separator %q: entries = %d, want 1", sep, len(entries))
		}
	}
}

func TestParseRejectsUnknownLayerAndBadDate(t *testing.T) {
	file := `## Wisdom — not a real layer (2026-01-15)
body

## Etched — bad date (2026-1-5)
body

## Etched — good (2026-01-15)
body
`
	entries := parse(t, file)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (only the well-formed header)", len(entries))
	}
	if entries[0].Tags != "good" {
		t.Errorf("kept entry = %q, want the well-formed one", entries[0].Tags)
	}
}

func TestParseHeaderNeedsBlankPredecessor(t *testing.T) {
	file := `## Etched — outer entry (2026-01-15)
some content
## Inscribed — looks like a header (2026-01-16)
more content

## Notes — real second entry (2026-01-17)
second body
`
	entries := parse(t, file)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	first := entries[0]
	if !strings.Contains(first.Content, "## Inscribed — looks like a header (2026-01-16)") {
		t.Errorf("embedded header did not stay in content: %q", first.Content)
	}
	if entries[1].Tags != "real second entry" {
		t.Errorf("second entry = %q", entries[1].Tags)
	}
}

func TestParseLeadingBlankLines(t *testing.T) {
	file := "\n\n## Traced — after blanks (2026-01-15)\nbody\n"
	entries := parse(t, file)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].LineNumber != 3 {
		t.Errorf("line number = %d, want 3", entries[0].LineNumber)
	}
}

func TestParseDropsEmptyContent(t *testing.T) {
	file := `## Etched — empty body (2026-01-15)

## Etched — has body (2026-01-16)
actual content
`
	entries := parse(t, file)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Tags != "has body" {
		t.Errorf("kept entry = %q", entries[0].Tags)
	}
}

func TestParseSourceOnlyOnFirstBodyLine(t *testing.T) {
	file := `## Etched — sources (2026-01-15)
real content first
**Source**: ` + "`late/source.go`" + `
trailing line
`
	entries := parse(t, file)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Source != "" {
		t.Errorf("source = %q, want empty (not first body line)", e.Source)
	}
	if !strings.Contains(e.Content, "**Source**: `late/source.go`") {
		t.Errorf("late source line missing from content: %q", e.Content)
	}
}

func TestParseSourceWithoutBackticks(t *testing.T) {
	file := `## Etched — plain source (2026-01-15)
**Source**: discussion in review thread
body
`
	entries := parse(t, file)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Source != "discussion in review thread" {
		t.Errorf("source = %q", entries[0].Source)
	}
	if entries[0].Content != "body" {
		t.Errorf("content = %q, want body only", entries[0].Content)
	}
}

func TestParseStripsTrailingWhitespace(t *testing.T) {
	file := "## Etched — trailing (2026-01-15)\nbody line\n\n   \n"
	entries := parse(t, file)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Content != "body line" {
		t.Errorf("content = %q, want %q", entries[0].Content, "body line")
	}
}

func TestParseCRLF(t *testing.T) {
	file := "## Etched — windows line endings (2026-01-15)\r\nbody one\r\nbody two\r\n"
	entries := parse(t, file)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Content != "body one\nbody two" {
		t.Errorf("content = %q", entries[0].Content)
	}
}

func TestParseMultipleEntriesLineNumbers(t *testing.T) {
	file := `## Etched — first (2026-01-15)
alpha

## Notes — second (2026-01-16)
beta
`
	entries := parse(t, file)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].LineNumber != 1 || entries[1].LineNumber != 4 {
		t.Errorf("line numbers = %d,%d want 1,4", entries[0].LineNumber, entries[1].LineNumber)
	}
	if entries[0].ID == entries[1].ID {
		t.Errorf("distinct entries share an id")
	}
}
