//go:build windows

package llm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// runSubprocess executes the external command with the prompt on stdin and
// enforces the wall-clock budget on Windows. Windows lacks Unix-style
// process groups; on timeout we best-effort kill the started process.
// Descendant processes may survive if they detach.
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
			_ = cmd.Process.Kill()
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
