package score

import (
	"path"
	"strings"
)

// Proximity scores how close two file paths sit in the tree. Comparison is
// purely lexical on cleaned slash paths; nothing is resolved against the
// filesystem. Same path 1.0, same directory 0.8, otherwise a shared-prefix
// ramp from 0.2 up to 0.6, and 0.0 with no common leading component.
func Proximity(a, b string) float64 {
	a, b = normalizePath(a), normalizePath(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	if path.Dir(a) == path.Dir(b) {
		return 0.8
	}

	aParts := strings.Split(a, "/")
	bParts := strings.Split(b, "/")
	common := 0
	for common < len(aParts) && common < len(bParts) && aParts[common] == bParts[common] {
		common++
	}
	if common == 0 {
		return 0
	}
	depth := len(aParts)
	if len(bParts) > depth {
		depth = len(bParts)
	}
	return 0.2 + 0.4*float64(common)/float64(depth)
}

// normalizePath cleans separators and strips any leading slash so absolute
// and repo-relative mentions of the same file compare equal.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// BestProximity returns the maximum pairwise proximity between the entry's
// evidence paths and the caller's context files, short-circuiting on an
// exact match.
func BestProximity(evidence, contextFiles []string) float64 {
	best := 0.0
	for _, e := range evidence {
		for _, c := range contextFiles {
			if s := Proximity(e, c); s > best {
				best = s
				if best >= 1.0 {
					return 1.0
				}
			}
		}
	}
	return best
}
