package llm

import (
	"context"
	"testing"
	"time"
)

func TestParseFacetsBareArray(t *testing.T) {
	facets, err := parseFacets(`["jwt auth", "token refresh"]`)
	if err != nil {
		t.Fatalf("parseFacets: %v", err)
	}
	if len(facets) != 2 || facets[0] != "jwt auth" || facets[1] != "token refresh" {
		t.Errorf("facets = %v", facets)
	}
}

func TestParseFacetsEnvelope(t *testing.T) {
	stdout := `{"type":"result","result":"[\"database pooling\", \"connection limits\"]"}`
	facets, err := parseFacets(stdout)
	if err != nil {
		t.Fatalf("parseFacets: %v", err)
	}
	if len(facets) != 2 || facets[0] != "database pooling" {
		t.Errorf("facets = %v", facets)
	}
}

func TestParseFacetsSkipsNonStrings(t *testing.T) {
	facets, err := parseFacets(`["ok", 3, {"q":"no"}, "   ", "two"]`)
	if err != nil {
		t.Fatalf("parseFacets: %v", err)
	}
	if len(facets) != 2 || facets[0] != "ok" || facets[1] != "two" {
		t.Errorf("facets = %v", facets)
	}
}

func TestDecomposeRoundTrip(t *testing.T) {
	script := writeScript(t, t.TempDir(), "fake-decompose.sh",
		"echo '[\"facet one\",\"facet two\"]'")

	d := &CLIDecomposer{command: script, timeout: 5 * time.Second}
	facets := d.Decompose(context.Background(), "how does auth work")
	if len(facets) != 2 || facets[0] != "facet one" || facets[1] != "facet two" {
		t.Errorf("facets = %v", facets)
	}
}

func TestDecomposeFallsBackOnMissingCommand(t *testing.T) {
	d := &CLIDecomposer{command: "no-such-decompose-binary", timeout: time.Second}
	facets := d.Decompose(context.Background(), "original query")
	if len(facets) != 1 || facets[0] != "original query" {
		t.Errorf("facets = %v, want the original query", facets)
	}
}

func TestDecomposeFallsBackOnBadOutput(t *testing.T) {
	script := writeScript(t, t.TempDir(), "prose.sh", `echo "I cannot split this query."`)

	d := &CLIDecomposer{command: script, timeout: 5 * time.Second}
	facets := d.Decompose(context.Background(), "original query")
	if len(facets) != 1 || facets[0] != "original query" {
		t.Errorf("facets = %v, want the original query", facets)
	}
}

func TestDecomposeFallsBackOnEmptyArray(t *testing.T) {
	script := writeScript(t, t.TempDir(), "empty.sh", `echo "[]"`)

	d := &CLIDecomposer{command: script, timeout: 5 * time.Second}
	facets := d.Decompose(context.Background(), "original query")
	if len(facets) != 1 || facets[0] != "original query" {
		t.Errorf("facets = %v, want the original query", facets)
	}
}

func TestPassthroughDecomposer(t *testing.T) {
	facets := PassthroughDecomposer{}.Decompose(context.Background(), "anything")
	if len(facets) != 1 || facets[0] != "anything" {
		t.Errorf("facets = %v", facets)
	}
}
