// Package pipeline orchestrates a search: facet decomposition, per-facet
// FTS retrieval, merge, composite scoring, group expansion, retry injection,
// optional LLM rerank, truncation. Optional stages are driven by the
// talisman snapshot taken at the start of each call.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/untoldecay/RuneEcho/internal/config"
	"github.com/untoldecay/RuneEcho/internal/llm"
	"github.com/untoldecay/RuneEcho/internal/score"
	"github.com/untoldecay/RuneEcho/internal/storage/sqlite"
	"github.com/untoldecay/RuneEcho/internal/types"
)

const (
	defaultLimit = 10
	// Over-fetch gives the scorer room to reorder lexical matches, bounded
	// so one query cannot pull the whole index into memory.
	overFetchFactor = 3
	maxOverFetch    = 150
	// Expansion additions are capped globally no matter how many groups
	// matched.
	maxExpansionAdds = 50
	expansionTag     = "group_expansion"
	// Aged failure rows are swept on roughly one search in a hundred.
	cleanupOneIn = 100
)

// SearchRequest carries the echo_search inputs. Role and Layer are optional
// filters; ContextFiles feed the proximity factor.
type SearchRequest struct {
	Query        string
	Limit        int
	Role         string
	Layer        string
	ContextFiles []string
}

// Pipeline runs searches against one store. The decomposer and reranker
// factories are fields so tests can substitute fakes for the external
// subprocesses.
type Pipeline struct {
	store         *sqlite.Store
	talisman      *config.TalismanLoader
	weights       score.Weights
	now           func() time.Time
	rollCleanup   func() bool
	newDecomposer func(config.Decomposition) llm.Decomposer
	newReranker   func(config.Reranking) llm.Reranker
}

// New builds a pipeline over the store. Weights are resolved once here:
// env vars are read at startup, not per search.
func New(store *sqlite.Store, talisman *config.TalismanLoader) *Pipeline {
	return &Pipeline{
		store:         store,
		talisman:      talisman,
		weights:       score.LoadWeights(),
		now:           time.Now,
		rollCleanup:   func() bool { return rand.Intn(cleanupOneIn) == 0 },
		newDecomposer: llm.NewDecomposer,
		newReranker:   llm.NewReranker,
	}
}

// Search runs the staged retrieval for one query. A query that sanitizes to
// no tokens returns an empty result without touching the database. The
// access log row for returned entries is durable before Search returns.
func (p *Pipeline) Search(ctx context.Context, req SearchRequest) ([]types.SearchResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	if len(score.Tokens(req.Query)) == 0 {
		return nil, nil
	}
	fingerprint := score.Fingerprint(req.Query)

	cfg := p.talisman.Load().Echoes

	start := time.Now()
	facets := p.newDecomposer(cfg.Decomposition).Decompose(ctx, req.Query)
	p.trace("decompose", start)

	start = time.Now()
	overFetch := limit * overFetchFactor
	if overFetch > maxOverFetch {
		overFetch = maxOverFetch
	}
	var batches [][]types.SearchResult
	for _, facet := range facets {
		match := score.FTSQuery(facet)
		if match == "" {
			continue
		}
		batch, err := p.store.SearchFTS(ctx, match, req.Role, req.Layer, overFetch)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	p.trace("search", start)

	start = time.Now()
	candidates := mergeBatches(batches)
	p.trace("merge", start)

	start = time.Now()
	scored, err := p.compositeScore(ctx, candidates, req.ContextFiles)
	if err != nil {
		return nil, err
	}
	p.trace("score", start)

	if cfg.SemanticGroups.ExpansionEnabled && len(scored) > 0 {
		start = time.Now()
		scored, err = p.expandGroups(ctx, scored, req.ContextFiles, cfg.SemanticGroups)
		if err != nil {
			return nil, err
		}
		p.trace("expand", start)
	}

	if cfg.Retry.Enabled && fingerprint != "" {
		start = time.Now()
		scored, err = p.injectRetries(ctx, scored, fingerprint, req.ContextFiles)
		if err != nil {
			return nil, err
		}
		p.trace("retry", start)
	}

	if cfg.Reranking.Enabled && len(scored) >= cfg.Reranking.Threshold {
		start = time.Now()
		scored = p.rerank(ctx, req.Query, scored, cfg.Reranking)
		p.trace("rerank", start)
	}

	results := scored
	if len(results) > limit {
		results = results[:limit]
	}

	if cfg.Retry.Enabled && fingerprint != "" {
		p.settleRetries(ctx, fingerprint, results, scored)
	}
	if p.rollCleanup() {
		if _, err := p.store.CleanupAgedFailures(ctx); err != nil {
			p.swallow("failure cleanup", err)
		}
	}
	p.logAccess(ctx, req.Query, results)

	return results, nil
}

// mergeBatches deduplicates per-facet results by entry id, keeping the best
// (most negative) BM25 across facets and every other field from the first
// occurrence.
func mergeBatches(batches [][]types.SearchResult) []types.SearchResult {
	var merged []types.SearchResult
	index := make(map[string]int)
	for _, batch := range batches {
		for _, r := range batch {
			if i, ok := index[r.ID]; ok {
				if r.BM25 < merged[i].BM25 {
					merged[i].BM25 = r.BM25
				}
				continue
			}
			index[r.ID] = len(merged)
			merged = append(merged, r)
		}
	}
	return merged
}

// compositeScore ranks a candidate batch: one batched access-count fetch,
// then the five-factor composite.
func (p *Pipeline) compositeScore(ctx context.Context, candidates []types.SearchResult, contextFiles []string) ([]types.SearchResult, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	counts, err := p.store.AccessCounts(ctx, resultIDs(candidates))
	if err != nil {
		return nil, err
	}
	return score.Composite(candidates, counts, contextFiles, p.weights, p.now()), nil
}

// expandGroups pulls in unmatched members of any semantic group a scored
// entry belongs to, scores them as their own batch, discounts, and merges.
func (p *Pipeline) expandGroups(ctx context.Context, scored []types.SearchResult, contextFiles []string, cfg config.SemanticGroups) ([]types.SearchResult, error) {
	matched := resultIDs(scored)
	groupIDs, err := p.store.GroupIDsForEntries(ctx, matched)
	if err != nil {
		return nil, err
	}
	if len(groupIDs) == 0 {
		return scored, nil
	}
	members, err := p.store.GroupMembersExcluding(ctx, groupIDs, matched)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return scored, nil
	}

	additions, err := p.compositeScore(ctx, members, contextFiles)
	if err != nil {
		return nil, err
	}
	maxAdds := cfg.MaxExpansion * len(groupIDs)
	if maxAdds > maxExpansionAdds {
		maxAdds = maxExpansionAdds
	}
	if len(additions) > maxAdds {
		additions = additions[:maxAdds]
	}
	for i := range additions {
		additions[i].CompositeScore = score.Round4(additions[i].CompositeScore * cfg.Discount)
		additions[i].ExpansionSource = expansionTag
	}

	merged := mergeByComposite(scored, additions)
	score.SortResults(merged)
	return merged, nil
}

// injectRetries adds previously-failed entries for this query fingerprint,
// scored as their own batch. The store marks them retry_source.
func (p *Pipeline) injectRetries(ctx context.Context, scored []types.SearchResult, fingerprint string, contextFiles []string) ([]types.SearchResult, error) {
	candidates, err := p.store.RetryCandidates(ctx, fingerprint, resultIDs(scored))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return scored, nil
	}
	additions, err := p.compositeScore(ctx, candidates, contextFiles)
	if err != nil {
		return nil, err
	}
	merged := mergeByComposite(scored, additions)
	score.SortResults(merged)
	return merged, nil
}

// rerank dispatches the top candidates to the external reranker. Any
// failure keeps the pre-rerank order.
func (p *Pipeline) rerank(ctx context.Context, query string, scored []types.SearchResult, cfg config.Reranking) []types.SearchResult {
	n := cfg.MaxCandidates
	if n > len(scored) {
		n = len(scored)
	}
	candidates := make([]llm.Candidate, n)
	for i := 0; i < n; i++ {
		candidates[i] = llm.Candidate{ID: scored[i].ID, Preview: oneLine(scored[i].Content)}
	}

	verdicts, err := p.newReranker(cfg).Rerank(ctx, query, candidates)
	if err != nil {
		p.swallow("rerank", err)
		return scored
	}
	if len(verdicts) == 0 {
		return scored
	}

	byID := make(map[string]float64, len(verdicts))
	for _, v := range verdicts {
		byID[v.ID] = v.Score
	}
	var reranked, rest []types.SearchResult
	for i := range scored {
		if i < n {
			if s, ok := byID[scored[i].ID]; ok {
				v := s
				scored[i].RerankScore = &v
				reranked = append(reranked, scored[i])
				continue
			}
		}
		rest = append(rest, scored[i])
	}
	sort.SliceStable(reranked, func(a, b int) bool {
		return *reranked[a].RerankScore > *reranked[b].RerankScore
	})
	return append(reranked, rest...)
}

// settleRetries closes the loop on failure tracking: entries that surfaced
// lose their failure row for this fingerprint, candidates that missed the
// cut gain or bump one. Both writes are non-critical.
func (p *Pipeline) settleRetries(ctx context.Context, fingerprint string, surfaced, pool []types.SearchResult) {
	returned := make(map[string]bool, len(surfaced))
	for _, r := range surfaced {
		returned[r.ID] = true
		if err := p.store.ResetFailureOnMatch(ctx, r.ID, fingerprint); err != nil {
			p.swallow("failure reset", err)
		}
	}
	for _, r := range pool {
		if returned[r.ID] {
			continue
		}
		if err := p.store.RecordSearchFailure(ctx, r.ID, fingerprint); err != nil {
			p.swallow("failure record", err)
		}
	}
}

// logAccess records the returned entries. Search never fails because of
// logging.
func (p *Pipeline) logAccess(ctx context.Context, query string, results []types.SearchResult) {
	if len(results) == 0 {
		return
	}
	if _, err := p.store.RecordAccess(ctx, resultIDs(results), query); err != nil {
		p.swallow("access log", err)
	}
}

// mergeByComposite appends additions to base, keeping the higher composite
// when an id appears in both.
func mergeByComposite(base, additions []types.SearchResult) []types.SearchResult {
	index := make(map[string]int, len(base))
	for i, r := range base {
		index[r.ID] = i
	}
	for _, a := range additions {
		if i, ok := index[a.ID]; ok {
			if a.CompositeScore > base[i].CompositeScore {
				base[i] = a
			}
			continue
		}
		index[a.ID] = len(base)
		base = append(base, a)
	}
	return base
}

func resultIDs(results []types.SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

// oneLine flattens a content preview for the line-oriented rerank prompt.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (p *Pipeline) trace(stage string, start time.Time) {
	if config.TraceEnabled() {
		fmt.Fprintf(os.Stderr, "[echo-search] %s: %dms\n", stage, time.Since(start).Milliseconds())
	}
}

// swallow reports a non-critical failure without failing the search.
func (p *Pipeline) swallow(op string, err error) {
	if config.TraceEnabled() {
		fmt.Fprintf(os.Stderr, "[echo-search] %s failed: %v\n", op, err)
	}
}
