package llm

import (
	"path/filepath"
	"strings"

	"github.com/untoldecay/RuneEcho/internal/config"
)

// claudePrintArgs put the stock claude CLI in non-interactive mode with the
// JSON result envelope on stdout.
var claudePrintArgs = []string{"-p", "--output-format", "json"}

// splitCommand breaks a configured command string into a binary name and its
// argv. A bare "claude" gets the print-mode flags appended; anything else is
// run verbatim, so custom wrappers control their own flags and answer with a
// bare JSON array instead of the envelope.
func splitCommand(command string) (string, []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{config.DefaultLLMCommand}
	}
	name := fields[0]
	args := fields[1:]
	if len(fields) == 1 && filepath.Base(name) == config.DefaultLLMCommand {
		args = claudePrintArgs
	}
	return name, args
}

// firstLine trims a captured stderr down to something that fits in an error.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
