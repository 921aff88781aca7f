// Package signals implements the dirty-signal handshake between MEMORY.md
// writers and the search server: a sentinel file whose presence means the
// index is stale.
package signals

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProjectRoot derives the project root from the echo directory. The
// conventional layout is <root>/.claude/echoes; anything else falls back
// to the grandparent directory.
func ProjectRoot(echoDir string) string {
	clean := filepath.Clean(echoDir)
	suffix := string(filepath.Separator) + filepath.Join(".claude", "echoes")
	if strings.HasSuffix(clean, suffix) {
		return strings.TrimSuffix(clean, suffix)
	}
	return filepath.Dir(filepath.Dir(clean))
}

// Path returns the dirty-signal location for an echo directory.
func Path(echoDir string) string {
	return filepath.Join(ProjectRoot(echoDir), "tmp", ".rune-signals", ".echo-dirty")
}

// Write drops the dirty signal. Content is informational only; presence
// is the signal.
func Write(echoDir string) error {
	p := Path(echoDir)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644)
}

// Consume atomically removes the signal and reports whether it was
// present. Unlink either succeeds exactly once across racing consumers or
// finds nothing to do.
func Consume(echoDir string) bool {
	return os.Remove(Path(echoDir)) == nil
}
