package llm

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseScoresBareArray(t *testing.T) {
	scores, err := parseScores(`[{"id":"aaa","score":0.9},{"id":"bbb","score":0.4}]`)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	if scores[0].ID != "aaa" || scores[0].Score != 0.9 {
		t.Errorf("scores[0] = %+v", scores[0])
	}
	if scores[1].ID != "bbb" || scores[1].Score != 0.4 {
		t.Errorf("scores[1] = %+v", scores[1])
	}
}

func TestParseScoresEnvelopeStringResult(t *testing.T) {
	stdout := `{"type":"result","result":"[{\"id\":\"aaa\",\"score\":0.7}]"}`
	scores, err := parseScores(stdout)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if len(scores) != 1 || scores[0].ID != "aaa" || scores[0].Score != 0.7 {
		t.Errorf("scores = %+v", scores)
	}
}

func TestParseScoresEnvelopeListResult(t *testing.T) {
	stdout := `{"type":"result","result":[{"id":"aaa","score":0.7}]}`
	scores, err := parseScores(stdout)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if len(scores) != 1 || scores[0].ID != "aaa" {
		t.Errorf("scores = %+v", scores)
	}
}

func TestParseScoresFencedOutput(t *testing.T) {
	stdout := "Here are the scores:\n```json\n[{\"id\":\"aaa\",\"score\":0.5}]\n```\n"
	scores, err := parseScores(stdout)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if len(scores) != 1 || scores[0].ID != "aaa" || scores[0].Score != 0.5 {
		t.Errorf("scores = %+v", scores)
	}
}

func TestParseScoresSkipsMalformed(t *testing.T) {
	stdout := `[{"id":"aaa","score":0.5}, 3, "junk", {"id":"bbb"}, {"score":0.2}, {"id":"ccc","score":"high"}]`
	scores, err := parseScores(stdout)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if len(scores) != 1 || scores[0].ID != "aaa" {
		t.Errorf("scores = %+v, want only aaa", scores)
	}
}

func TestParseScoresClamps(t *testing.T) {
	scores, err := parseScores(`[{"id":"low","score":-0.5},{"id":"high","score":1.7}]`)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if scores[0].Score != 0 {
		t.Errorf("low score = %v, want 0", scores[0].Score)
	}
	if scores[1].Score != 1 {
		t.Errorf("high score = %v, want 1", scores[1].Score)
	}
}

func TestParseScoresNoArray(t *testing.T) {
	if _, err := parseScores("I could not score these entries."); err == nil {
		t.Fatal("expected error for output without an array")
	}
}

func TestRerankPromptListsCandidates(t *testing.T) {
	prompt := rerankPrompt("jwt refresh", []Candidate{
		{ID: "aaa", Preview: "JWT tokens expire after 15 minutes"},
		{ID: "bbb", Preview: "Refresh flow uses the auth service"},
	})

	if !strings.Contains(prompt, "Query: jwt refresh") {
		t.Errorf("prompt missing query: %q", prompt)
	}
	if !strings.Contains(prompt, "[aaa]: JWT tokens expire after 15 minutes") {
		t.Errorf("prompt missing first candidate: %q", prompt)
	}
	if !strings.Contains(prompt, "[bbb]: Refresh flow uses the auth service") {
		t.Errorf("prompt missing second candidate: %q", prompt)
	}
}

func TestCLIRerankerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	promptFile := filepath.Join(dir, "prompt.txt")
	script := writeScript(t, dir, "fake-rerank.sh",
		"cat > "+promptFile+"\necho '[{\"id\":\"e1\",\"score\":0.8},{\"id\":\"e2\",\"score\":0.3}]'")

	r := &CLIReranker{command: script, timeout: 5 * time.Second}
	scores, err := r.Rerank(context.Background(), "auth tokens", []Candidate{
		{ID: "e1", Preview: "token rotation"},
		{ID: "e2", Preview: "database pooling"},
	})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(scores) != 2 || scores[0].ID != "e1" || scores[0].Score != 0.8 {
		t.Errorf("scores = %+v", scores)
	}

	prompt, err := os.ReadFile(promptFile)
	if err != nil {
		t.Fatalf("read prompt: %v", err)
	}
	if !strings.Contains(string(prompt), "Query: auth tokens") {
		t.Errorf("command did not receive the query on stdin: %q", prompt)
	}
	if !strings.Contains(string(prompt), "[e1]: token rotation") {
		t.Errorf("command did not receive candidates on stdin: %q", prompt)
	}
}

func TestCLIRerankerMissingCommand(t *testing.T) {
	r := &CLIReranker{command: "no-such-rerank-binary", timeout: time.Second}
	if _, err := r.Rerank(context.Background(), "q", []Candidate{{ID: "a", Preview: "p"}}); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestCLIRerankerNoCandidates(t *testing.T) {
	r := &CLIReranker{command: "no-such-rerank-binary", timeout: time.Second}
	scores, err := r.Rerank(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Rerank with no candidates should not run the command: %v", err)
	}
	if scores != nil {
		t.Errorf("scores = %+v, want nil", scores)
	}
}
