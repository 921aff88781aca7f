package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/untoldecay/RuneEcho/internal/config"
	"github.com/untoldecay/RuneEcho/internal/indexer"
	"github.com/untoldecay/RuneEcho/internal/logging"
	"github.com/untoldecay/RuneEcho/internal/signals"
)

const (
	watchDebounce     = 500 * time.Millisecond
	watchPollInterval = 5 * time.Second
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch MEMORY.md files and mark the index dirty on change",
	Long: `Monitor the role directories under ECHO_DIR and write the dirty
signal whenever a MEMORY.md changes, so the next search reindexes.
Falls back to mtime polling when filesystem events are unavailable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setupEnv(); err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return runWatch(ctx, config.EchoDir())
	},
}

func runWatch(ctx context.Context, echoDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: filesystem events unavailable (%v), polling every %v\n", err, watchPollInterval)
		return pollMemoryFiles(ctx, echoDir)
	}
	defer func() { _ = watcher.Close() }()

	// Watching the root catches new role directories; watching each role
	// directory catches MEMORY.md writes, creates and renames.
	if err := watcher.Add(echoDir); err != nil {
		return fmt.Errorf("cannot watch %s: %w", echoDir, err)
	}
	addRoleWatches(watcher, echoDir)

	logging.Logf("watching %s for MEMORY.md changes", echoDir)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			markDirty(echoDir)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
				// A new role directory needs its own watch.
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = watcher.Add(ev.Name)
					continue
				}
			}
			if filepath.Base(ev.Name) != "MEMORY.md" {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warnf("watch error: %v", err)
		}
	}
}

func addRoleWatches(watcher *fsnotify.Watcher, echoDir string) {
	roles, err := indexer.DiscoverRoles(echoDir)
	if err != nil {
		logging.Warnf("role discovery failed: %v", err)
		return
	}
	for _, rf := range roles {
		if err := watcher.Add(filepath.Dir(rf.Path)); err != nil {
			logging.Warnf("cannot watch %s: %v", filepath.Dir(rf.Path), err)
		}
	}
}

// pollMemoryFiles is the fallback when fsnotify cannot start: compare
// MEMORY.md mtimes on an interval and mark dirty on any difference.
func pollMemoryFiles(ctx context.Context, echoDir string) error {
	last := memoryMtimes(echoDir)
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current := memoryMtimes(echoDir)
			if !sameMtimes(last, current) {
				markDirty(echoDir)
				last = current
			}
		}
	}
}

func memoryMtimes(echoDir string) map[string]time.Time {
	mtimes := make(map[string]time.Time)
	roles, err := indexer.DiscoverRoles(echoDir)
	if err != nil {
		return mtimes
	}
	for _, rf := range roles {
		if info, err := os.Stat(rf.Path); err == nil {
			mtimes[rf.Path] = info.ModTime()
		}
	}
	return mtimes
}

func sameMtimes(a, b map[string]time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for path, t := range a {
		if other, ok := b[path]; !ok || !other.Equal(t) {
			return false
		}
	}
	return true
}

func markDirty(echoDir string) {
	if err := signals.Write(echoDir); err != nil {
		logging.Warnf("cannot write dirty signal: %v", err)
		return
	}
	logging.Logf("MEMORY.md changed, dirty signal written")
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
