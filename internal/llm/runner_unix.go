//go:build unix

package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// runSubprocess executes the external command with the prompt on stdin and
// enforces the wall-clock budget, killing the process group on expiration.
// External CLIs spawn helper processes; killing only the direct child would
// leave those running, so the child gets its own process group (Setpgid) and
// the timeout path signals the negative pid to take out the whole group.
func runSubprocess(ctx context.Context, timeout time.Duration, name string, args []string, stdin string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- the command comes from the operator's talisman.yml
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return "", err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
				return "", fmt.Errorf("kill process group: %w", err)
			}
		}
		<-done
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			if msg := firstLine(stderr.String()); msg != "" {
				return "", fmt.Errorf("%s: %w: %s", name, err, msg)
			}
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return stdout.String(), nil
	}
}
