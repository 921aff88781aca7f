// Package grouper clusters related echo entries into semantic groups by
// Jaccard similarity over shared file mentions and content tokens. Groups
// feed search-time expansion: surfacing one member pulls in its siblings
// at a discount.
package grouper

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sort"
	"strings"

	"github.com/untoldecay/RuneEcho/internal/score"
	"github.com/untoldecay/RuneEcho/internal/types"
)

const (
	// DefaultThreshold is the minimum pairwise similarity that links two
	// entries into the same group.
	DefaultThreshold = 0.3
	// DefaultMaxGroupSize bounds group size; larger clusters are chunked.
	DefaultMaxGroupSize = 20
)

// Grouper computes semantic groups over an entry set.
type Grouper struct {
	Threshold    float64
	MaxGroupSize int
}

// New returns a Grouper with the default threshold and size bound.
func New() *Grouper {
	return &Grouper{Threshold: DefaultThreshold, MaxGroupSize: DefaultMaxGroupSize}
}

// BuildGroups clusters entries and returns membership rows ready for
// storage. Group ids are derived from the sorted member ids, so the same
// entry set always produces the same groups. Singleton clusters are
// dropped.
func (g *Grouper) BuildGroups(entries []types.Entry) []types.GroupMember {
	if len(entries) < 2 {
		return nil
	}

	features := make([]map[string]struct{}, len(entries))
	for i, e := range entries {
		features[i] = FeatureSet(e)
	}

	uf := newUnionFind(len(entries))
	maxSim := make([]float64, len(entries))
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			sim := Jaccard(features[i], features[j])
			if sim < g.Threshold {
				continue
			}
			uf.union(i, j)
			if sim > maxSim[i] {
				maxSim[i] = sim
			}
			if sim > maxSim[j] {
				maxSim[j] = sim
			}
		}
	}

	components := make(map[int][]int)
	for i := range entries {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	// Deterministic component order keeps output stable across runs.
	roots := make([]int, 0, len(components))
	for root, members := range components {
		if len(members) >= 2 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	var out []types.GroupMember
	for _, root := range roots {
		members := components[root]
		for _, chunk := range g.chunk(members, maxSim) {
			id := groupID(entries, chunk)
			for _, idx := range chunk {
				out = append(out, types.GroupMember{
					GroupID:    id,
					EntryID:    entries[idx].ID,
					Similarity: maxSim[idx],
				})
			}
		}
	}
	return out
}

// chunk splits an oversized component into groups of at most MaxGroupSize,
// strongest similarities first. Chunks that end up with a single member
// are dropped like any other singleton.
func (g *Grouper) chunk(members []int, maxSim []float64) [][]int {
	size := g.MaxGroupSize
	if size <= 0 {
		size = DefaultMaxGroupSize
	}
	if len(members) <= size {
		return [][]int{members}
	}

	sorted := make([]int, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(a, b int) bool {
		if maxSim[sorted[a]] == maxSim[sorted[b]] {
			return sorted[a] < sorted[b]
		}
		return maxSim[sorted[a]] > maxSim[sorted[b]]
	})

	var chunks [][]int
	for start := 0; start < len(sorted); start += size {
		end := start + size
		if end > len(sorted) {
			end = len(sorted)
		}
		if end-start < 2 {
			continue
		}
		chunks = append(chunks, sorted[start:end])
	}
	return chunks
}

// FeatureSet builds an entry's similarity features: lowercase basenames of
// its evidence paths and its own file path, plus filtered content and tag
// tokens.
func FeatureSet(e types.Entry) map[string]struct{} {
	set := make(map[string]struct{})
	for _, p := range score.EvidencePaths(e.Content, e.Source) {
		set[strings.ToLower(path.Base(p))] = struct{}{}
	}
	if e.FilePath != "" {
		normalized := strings.ReplaceAll(e.FilePath, "\\", "/")
		set[strings.ToLower(path.Base(normalized))] = struct{}{}
	}
	for _, tok := range score.ContentTokens(e.Content + " " + e.Tags) {
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard returns the intersection-over-union of two feature sets, zero
// when both are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// groupID derives a stable 16-hex id from the sorted member entry ids.
func groupID(entries []types.Entry, members []int) string {
	ids := make([]string, len(members))
	for i, idx := range members {
		ids[i] = entries[idx].ID
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
