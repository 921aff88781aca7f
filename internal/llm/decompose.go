package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CLIDecomposer shells out to an external command that splits the query into
// facets. The contract never fails: any error, timeout, or empty answer
// falls back to the original query.
type CLIDecomposer struct {
	command string
	timeout time.Duration
}

// Decompose implements Decomposer.
func (d *CLIDecomposer) Decompose(ctx context.Context, query string) []string {
	name, args := splitCommand(d.command)
	out, err := runSubprocess(ctx, d.timeout, name, args, decomposePrompt(query))
	if err != nil {
		traceFallback("decompose", err)
		return []string{query}
	}
	facets, err := parseFacets(out)
	if err != nil {
		traceFallback("decompose", err)
		return []string{query}
	}
	if len(facets) == 0 {
		return []string{query}
	}
	return facets
}

// decomposePrompt asks for a small facet list. The cap lives in the prompt:
// the external model is the rate limiter, not this process.
func decomposePrompt(query string) string {
	var b strings.Builder
	b.WriteString("Split the query into at most 5 short search facets, one aspect each.\n")
	b.WriteString("Reply with only a JSON array of strings. Keep a focused query as a single facet.\n\n")
	fmt.Fprintf(&b, "Query: %s\n", query)
	return b.String()
}

// parseFacets reads the facet list out of the command output. Non-string
// elements and blank facets are skipped.
func parseFacets(stdout string) ([]string, error) {
	items, err := jsonArray(payloadText(stdout))
	if err != nil {
		return nil, err
	}
	facets := make([]string, 0, len(items))
	for _, raw := range items {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		facets = append(facets, s)
	}
	return facets, nil
}
