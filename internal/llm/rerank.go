package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CLIReranker shells out to an external command. The prompt goes to stdin;
// stdout must carry a JSON array of {id, score} objects, either bare or
// inside the claude CLI result envelope.
type CLIReranker struct {
	command string
	timeout time.Duration
}

// Rerank implements Reranker.
func (r *CLIReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Score, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	name, args := splitCommand(r.command)
	out, err := runSubprocess(ctx, r.timeout, name, args, rerankPrompt(query, candidates))
	if err != nil {
		return nil, err
	}
	return parseScores(out)
}

// rerankPrompt builds the stdin payload: the query followed by one
// "[id]: preview" line per candidate.
func rerankPrompt(query string, candidates []Candidate) string {
	var b strings.Builder
	b.WriteString("Score each memory entry for how well it answers the query.\n")
	b.WriteString("Reply with only a JSON array of {\"id\": \"...\", \"score\": 0.0-1.0} objects.\n\n")
	fmt.Fprintf(&b, "Query: %s\n\nEntries:\n", query)
	for _, c := range candidates {
		fmt.Fprintf(&b, "[%s]: %s\n", c.ID, c.Preview)
	}
	return b.String()
}

// parseScores reads the reranker verdicts out of the command output.
// Elements that are not objects or lack an id or score are skipped; scores
// are clamped to [0,1].
func parseScores(stdout string) ([]Score, error) {
	items, err := jsonArray(payloadText(stdout))
	if err != nil {
		return nil, err
	}
	scores := make([]Score, 0, len(items))
	for _, raw := range items {
		var item struct {
			ID    string   `json:"id"`
			Score *float64 `json:"score"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if item.ID == "" || item.Score == nil {
			continue
		}
		s := *item.Score
		if s < 0 {
			s = 0
		} else if s > 1 {
			s = 1
		}
		scores = append(scores, Score{ID: item.ID, Score: s})
	}
	return scores, nil
}
