// Package promote rewrites frequently accessed observation entries into
// inscribed ones. Promotion edits MEMORY.md headers in place via a temp
// file and rename, so a crash mid-promotion never leaves a half-written
// memory file.
package promote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/untoldecay/RuneEcho/internal/signals"
	"github.com/untoldecay/RuneEcho/internal/storage/sqlite"
)

const (
	// MinAccessCount is how many logged accesses qualify an observation
	// for promotion.
	MinAccessCount = 3
	// maxHeaderDrift bounds how far a header may have moved from its
	// recorded line before promotion gives up on it.
	maxHeaderDrift = 10
)

// observationsHeader splits a promotable header into the parts around the
// layer word, so the rewrite preserves spacing, title, and date exactly.
var observationsHeader = regexp.MustCompile(`^(##\s+)Observations(\s*[—–-]\s*.+)$`)

// Promoter finds hot observations and rewrites their headers.
type Promoter struct {
	store     *sqlite.Store
	echoDir   string
	minAccess int
}

// New returns a Promoter over the store and echo root.
func New(store *sqlite.Store, echoDir string) *Promoter {
	return &Promoter{store: store, echoDir: echoDir, minAccess: MinAccessCount}
}

// Run promotes every qualifying observation and returns how many headers
// were rewritten. Per-file failures are skipped with a stderr warning so
// one unwritable file cannot block the reindex that follows.
func (p *Promoter) Run(ctx context.Context) (int, error) {
	candidates, err := p.store.PromotionCandidates(ctx, p.minAccess)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	byFile := make(map[string][]sqlite.PromotionCandidate)
	var order []string
	for _, c := range candidates {
		if _, ok := byFile[c.FilePath]; !ok {
			order = append(order, c.FilePath)
		}
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	total := 0
	for _, path := range order {
		n, err := p.promoteFile(path, byFile[path])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping promotion in %s: %v\n", path, err)
			continue
		}
		total += n
	}

	// Rewritten headers mean the index is stale until the next rebuild
	// picks up the new layer labels. Signal failures never fail the run.
	if total > 0 {
		if err := signals.Write(p.echoDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write dirty signal: %v\n", err)
		}
	}
	return total, nil
}

func (p *Promoter) promoteFile(filePath string, targets []sqlite.PromotionCandidate) (int, error) {
	if err := verifyContained(filePath, p.echoDir); err != nil {
		return 0, err
	}
	if err := unix.Access(filePath, unix.W_OK); err != nil {
		return 0, fmt.Errorf("no write access: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, err
	}
	lines := strings.Split(string(data), "\n")

	claimed := make(map[int]bool)
	rewritten := 0
	for _, tgt := range targets {
		idx := findHeaderLine(lines, tgt.LineNumber-1, claimed)
		if idx < 0 {
			fmt.Fprintf(os.Stderr, "Warning: observation header not found near line %d in %s\n", tgt.LineNumber, filePath)
			continue
		}
		m := observationsHeader.FindStringSubmatch(lines[idx])
		lines[idx] = m[1] + "Inscribed" + m[2]
		claimed[idx] = true
		rewritten++
	}
	if rewritten == 0 {
		return 0, nil
	}

	if err := writeAtomic(filePath, strings.Join(lines, "\n")); err != nil {
		return 0, err
	}
	return rewritten, nil
}

// findHeaderLine locates an unclaimed observation header at the recorded
// index, or drifted up to maxHeaderDrift lines in either direction.
// Edits above an entry push its header down, so the positive offset is
// tried first at each distance.
func findHeaderLine(lines []string, want int, claimed map[int]bool) int {
	matches := func(i int) bool {
		return i >= 0 && i < len(lines) && !claimed[i] && observationsHeader.MatchString(lines[i])
	}
	if matches(want) {
		return want
	}
	for d := 1; d <= maxHeaderDrift; d++ {
		if matches(want + d) {
			return want + d
		}
		if matches(want - d) {
			return want - d
		}
	}
	return -1
}

// verifyContained resolves symlinks on both sides and rejects files that
// escape the echo root.
func verifyContained(filePath, echoDir string) error {
	realFile, err := filepath.EvalSymlinks(filePath)
	if err != nil {
		return fmt.Errorf("cannot resolve file path: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(echoDir)
	if err != nil {
		return fmt.Errorf("cannot resolve echo root: %w", err)
	}
	if realFile != realRoot && !strings.HasPrefix(realFile, realRoot+string(filepath.Separator)) {
		return fmt.Errorf("file is outside the echo root")
	}
	return nil
}

// writeAtomic writes content to a sibling temp file and renames it over
// the original, keeping the original's permission bits. The temp file is
// unlinked on any failure.
func writeAtomic(filePath, content string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".promote-*.md")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func(e error) error {
		_ = os.Remove(tmpPath)
		return e
	}

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return cleanup(err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return cleanup(err)
	}
	return nil
}
