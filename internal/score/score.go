package score

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/untoldecay/RuneEcho/internal/types"
)

const dateLayout = "2006-01-02"

// Composite scores a candidate batch in place and returns it sorted by
// descending composite score. BM25 normalization is relative to this batch
// only, so expansion and retry candidates scored as their own batch get a
// fair relevance baseline. counts carries access-log frequencies keyed by
// entry id; contextFiles is the caller's open-file list and may be empty.
func Composite(results []types.SearchResult, counts map[string]int, contextFiles []string, w Weights, now time.Time) []types.SearchResult {
	if len(results) == 0 {
		return results
	}

	minBM25, maxBM25 := results[0].BM25, results[0].BM25
	for _, r := range results[1:] {
		if r.BM25 < minBM25 {
			minBM25 = r.BM25
		}
		if r.BM25 > maxBM25 {
			maxBM25 = r.BM25
		}
	}
	spread := maxBM25 - minBM25

	maxLogCount := 0.0
	for _, r := range results {
		if c := counts[r.ID]; c > 0 {
			if l := math.Log(1 + float64(c)); l > maxLogCount {
				maxLogCount = l
			}
		}
	}

	for i := range results {
		r := &results[i]

		// Lower BM25 is better, so the batch minimum maps to 1.0. A
		// single candidate or an all-equal batch is fully relevant.
		relevance := 1.0
		if spread > 0 {
			relevance = (maxBM25 - r.BM25) / spread
		}

		proximity := 0.0
		if len(contextFiles) > 0 {
			proximity = BestProximity(EvidencePaths(r.Content, r.Source), contextFiles)
		}

		frequency := 0.0
		if maxLogCount > 0 {
			if c := counts[r.ID]; c > 0 {
				frequency = math.Log(1+float64(c)) / maxLogCount
			}
		}

		r.Scores = types.ScoreBreakdown{
			Relevance:  relevance,
			Importance: Importance(r.Layer),
			Recency:    Recency(r.Date, now),
			Proximity:  proximity,
			Frequency:  frequency,
		}
		r.CompositeScore = Round4(w.Relevance*r.Scores.Relevance +
			w.Importance*r.Scores.Importance +
			w.Recency*r.Scores.Recency +
			w.Proximity*r.Scores.Proximity +
			w.Frequency*r.Scores.Frequency)
	}

	SortResults(results)
	return results
}

// SortResults orders results by descending composite score, breaking ties by
// entry id so equal scores come back in a stable order.
func SortResults(results []types.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].CompositeScore == results[j].CompositeScore {
			return results[i].ID < results[j].ID
		}
		return results[i].CompositeScore > results[j].CompositeScore
	})
}

// Importance maps a layer to its fixed weight. Unknown layers score like
// traced.
func Importance(layer string) float64 {
	switch strings.ToLower(layer) {
	case types.LayerEtched:
		return 1.0
	case types.LayerNotes:
		return 0.8
	case types.LayerInscribed:
		return 0.6
	case types.LayerObservations:
		return 0.4
	case types.LayerTraced:
		return 0.3
	}
	return 0.3
}

// Recency decays by half every 30 days from the entry date. Missing or
// unparseable dates score zero rather than erroring.
func Recency(date string, now time.Time) float64 {
	if date == "" {
		return 0
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0
	}
	ageDays := now.Sub(d).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(2, -ageDays/30)
}

// Round4 rounds to the four decimal places composite scores carry.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
