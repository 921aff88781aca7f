package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogfWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echo.log")
	Setup(path)
	defer Close()

	Logf("reindexed %d entries", 7)
	Warnf("talisman unreadable: %s", "bad yaml")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "reindexed 7 entries") {
		t.Errorf("log file missing info line: %q", content)
	}
	if !strings.Contains(content, "Warning: talisman unreadable: bad yaml") {
		t.Errorf("log file missing warning line: %q", content)
	}
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if !strings.HasPrefix(line, "[") {
			t.Errorf("file line missing timestamp prefix: %q", line)
		}
	}
}

func TestSetupWithoutPathKeepsStderrOnly(t *testing.T) {
	Setup("")
	defer Close()

	// Must not panic and must not create any file sink.
	Logf("stderr only")
	mu.Lock()
	hasFile := file != nil
	mu.Unlock()
	if hasFile {
		t.Error("Setup(\"\") should not install a file sink")
	}
}
