// Package llm runs the external model helpers behind the optional search
// stages: query decomposition and candidate reranking. Both are modeled as
// capability interfaces with a subprocess implementation and a pass-through,
// so the pipeline never branches on configuration itself.
package llm

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/untoldecay/RuneEcho/internal/config"
)

// Candidate is one scored entry offered to the reranker: the id it must
// echo back and a short content preview.
type Candidate struct {
	ID      string
	Preview string
}

// Score is one reranker verdict, clamped to [0,1].
type Score struct {
	ID    string
	Score float64
}

// Decomposer splits a query into search facets. Implementations never fail:
// the result always has at least one element, falling back to the original
// query on any error or timeout.
type Decomposer interface {
	Decompose(ctx context.Context, query string) []string
}

// Reranker reorders candidates by semantic relevance to the query. A nil
// score slice with a nil error means the stage had nothing to say and the
// caller keeps its own order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Score, error)
}

// PassthroughDecomposer returns the query unchanged.
type PassthroughDecomposer struct{}

// Decompose implements Decomposer.
func (PassthroughDecomposer) Decompose(_ context.Context, query string) []string {
	return []string{query}
}

// PassthroughReranker scores nothing.
type PassthroughReranker struct{}

// Rerank implements Reranker.
func (PassthroughReranker) Rerank(_ context.Context, _ string, _ []Candidate) ([]Score, error) {
	return nil, nil
}

// NewDecomposer selects the decomposition implementation for the given
// config snapshot. Disabled decomposition gets the pass-through.
func NewDecomposer(cfg config.Decomposition) Decomposer {
	if !cfg.Enabled {
		return PassthroughDecomposer{}
	}
	return &CLIDecomposer{
		command: cfg.Command,
		timeout: budget(config.DefaultDecomposeTimeout),
	}
}

var warnAPIFallback sync.Once

// NewReranker selects the rerank implementation for the given config
// snapshot. The api backend needs ANTHROPIC_API_KEY and falls back to the
// cli wire contract when no key is available.
func NewReranker(cfg config.Reranking) Reranker {
	if !cfg.Enabled {
		return PassthroughReranker{}
	}
	timeout := budget(cfg.Timeout)
	if cfg.Backend == config.BackendAPI {
		api, err := NewAPIReranker("", timeout)
		if err == nil {
			return api
		}
		warnAPIFallback.Do(func() {
			fmt.Fprintf(os.Stderr, "Warning: api rerank backend unavailable (%v), using cli\n", err)
		})
	}
	return &CLIReranker{command: cfg.Command, timeout: timeout}
}

// budget converts a config timeout in seconds to a wall-clock duration.
func budget(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// traceFallback reports a stage dropping to pass-through behavior. Silent
// unless RUNE_TRACE=1.
func traceFallback(stage string, err error) {
	if config.TraceEnabled() {
		fmt.Fprintf(os.Stderr, "[echo-search] %s fallback: %v\n", stage, err)
	}
}
