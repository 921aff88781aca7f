package score

import (
	"regexp"
	"strings"
)

// maxEvidencePaths caps how many path mentions feed proximity scoring.
const maxEvidencePaths = 10

// Backtick-quoted tokens ending in a short lowercase extension.
var backtickPath = regexp.MustCompile("`([^`]+\\.[a-z]{1,6})`")

// EvidencePaths extracts file-path mentions from an entry's content and
// source line. Content contributes backtick-quoted paths; source
// contributes whitespace-delimited tokens with a slash and no colon (which
// drops URLs and file:line references). Paths are treated as opaque
// strings and never touched on disk.
func EvidencePaths(content, source string) []string {
	seen := make(map[string]struct{})
	var paths []string
	add := func(tok string) bool {
		tok = strings.ReplaceAll(tok, "\\", "/")
		if _, ok := seen[tok]; ok {
			return false
		}
		seen[tok] = struct{}{}
		paths = append(paths, tok)
		return len(paths) >= maxEvidencePaths
	}

	for _, m := range backtickPath.FindAllStringSubmatch(content, -1) {
		if !strings.Contains(m[1], "/") {
			continue
		}
		if add(m[1]) {
			return paths
		}
	}
	for _, tok := range strings.Fields(source) {
		if !strings.Contains(tok, "/") || strings.Contains(tok, ":") {
			continue
		}
		if add(tok) {
			return paths
		}
	}
	return paths
}
