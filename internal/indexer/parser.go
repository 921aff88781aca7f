// Package indexer turns role-scoped MEMORY.md files into database rows:
// role discovery, markdown section parsing, and the rebuild orchestration
// that ties promotion, indexing, and grouping together.
package indexer

import (
	"regexp"
	"strings"

	"github.com/untoldecay/RuneEcho/internal/types"
)

// headerRegex recognizes an entry header:
//
//	## <Layer> — <Title> (<YYYY-MM-DD>)
//
// The separator may be an em-dash, en-dash, or hyphen. Unknown layer names
// and malformed dates do not match, so such lines stay ordinary content.
var headerRegex = regexp.MustCompile(`^##\s+(Etched|Inscribed|Traced|Notes|Observations)\s+[—–-]\s+(.+?)\s+\((\d{4}-\d{2}-\d{2})\)\s*$`)

// sourceRegex matches the optional first body line naming where an entry
// came from, with or without backticks around the value.
var sourceRegex = regexp.MustCompile("^\\*\\*Source\\*\\*:\\s*`?([^`]+)`?")

// ParseMemoryFile extracts the entries of one MEMORY.md. A header starts
// an entry only when the previous line is blank (start of file counts as
// blank); header-shaped lines inside a body stay content. Entries whose
// body is empty after trimming are dropped.
func ParseMemoryFile(role, filePath string, data []byte) []types.Entry {
	lines := strings.Split(string(data), "\n")

	var entries []types.Entry
	var cur *types.Entry
	var body []string
	firstBodyLine := false
	prevBlank := true

	flush := func() {
		if cur == nil {
			return
		}
		content := strings.TrimRight(strings.Join(body, "\n"), " \t\r\n")
		if content != "" {
			cur.Content = content
			cur.ID = types.EntryID(role, cur.LineNumber, filePath)
			entries = append(entries, *cur)
		}
		cur = nil
		body = nil
	}

	for i, raw := range lines {
		line := strings.TrimSuffix(raw, "\r")

		if m := headerRegex.FindStringSubmatch(line); m != nil && prevBlank {
			flush()
			cur = &types.Entry{
				Role:       role,
				Layer:      strings.ToLower(m[1]),
				Tags:       m[2],
				Date:       m[3],
				LineNumber: i + 1,
				FilePath:   filePath,
			}
			firstBodyLine = true
		} else if cur != nil {
			if firstBodyLine {
				if m := sourceRegex.FindStringSubmatch(line); m != nil {
					cur.Source = strings.TrimSpace(m[1])
				} else {
					body = append(body, line)
				}
				firstBodyLine = false
			} else {
				body = append(body, line)
			}
		}

		prevBlank = strings.TrimSpace(line) == ""
	}
	flush()
	return entries
}
