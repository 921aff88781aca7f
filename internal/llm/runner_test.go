package llm

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

// writeScript drops an executable shell script into dir and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunSubprocessCapturesStdout(t *testing.T) {
	script := writeScript(t, t.TempDir(), "ok.sh", `echo "hello"`)

	out, err := runSubprocess(context.Background(), 5*time.Second, script, nil, "")
	if err != nil {
		t.Fatalf("runSubprocess: %v", err)
	}
	if out != "hello\n" {
		t.Errorf("stdout = %q, want %q", out, "hello\n")
	}
}

func TestRunSubprocessPassesStdin(t *testing.T) {
	script := writeScript(t, t.TempDir(), "cat.sh", `cat`)

	out, err := runSubprocess(context.Background(), 5*time.Second, script, nil, "prompt text")
	if err != nil {
		t.Fatalf("runSubprocess: %v", err)
	}
	if out != "prompt text" {
		t.Errorf("stdout = %q, want %q", out, "prompt text")
	}
}

func TestRunSubprocessMissingBinary(t *testing.T) {
	_, err := runSubprocess(context.Background(), time.Second, "definitely-not-installed-anywhere", nil, "")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "not found on PATH") {
		t.Errorf("error = %v, want PATH lookup failure", err)
	}
}

func TestRunSubprocessNonZeroExit(t *testing.T) {
	script := writeScript(t, t.TempDir(), "fail.sh", "echo \"boom\" >&2\nexit 3")

	_, err := runSubprocess(context.Background(), 5*time.Second, script, nil, "")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error = %v, want stderr line included", err)
	}
}

func TestRunSubprocessTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping timeout test in short mode")
	}

	script := writeScript(t, t.TempDir(), "slow.sh", `sleep 60`)

	start := time.Now()
	_, err := runSubprocess(context.Background(), 500*time.Millisecond, script, nil, "")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed > 5*time.Second {
		t.Errorf("runSubprocess took too long: %v", elapsed)
	}
}

func TestRunSubprocessKillsDescendants(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("descendant check requires Linux /proc")
	}
	if testing.Short() {
		t.Skip("Skipping descendant kill test in short mode")
	}

	dir := t.TempDir()
	pidFile := filepath.Join(dir, "child.pid")

	// The script backgrounds a sleep, records its pid, and waits for it.
	// Killing only the direct child would leave the sleep running.
	script := writeScript(t, dir, "spawn.sh", `(sleep 60 & echo $! > `+pidFile+` ; wait)`)

	_, err := runSubprocess(context.Background(), 500*time.Millisecond, script, nil, "")
	if err == nil {
		t.Fatal("expected timeout error")
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("invalid pid in pid file: %v", err)
	}

	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid))); err != nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("child process %d still exists after timeout", pid)
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		command  string
		wantName string
		wantArgs []string
	}{
		{"claude", "claude", []string{"-p", "--output-format", "json"}},
		{"/usr/local/bin/claude", "/usr/local/bin/claude", []string{"-p", "--output-format", "json"}},
		{"claude -p", "claude", []string{"-p"}},
		{"my-rerank-script", "my-rerank-script", nil},
		{"python3 rerank.py", "python3", []string{"rerank.py"}},
		{"", "claude", []string{"-p", "--output-format", "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			name, args := splitCommand(tt.command)
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %q, want %q", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}
