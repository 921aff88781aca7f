// Package logging routes long-running diagnostics to stderr and, when
// ECHO_LOG_FILE is set, to a size-rotated file. Stdout is never written:
// the serve loop owns it for the wire protocol.
package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu   sync.Mutex
	file *lumberjack.Logger
)

// Setup installs the rotating file sink when path is non-empty.
// Call once at startup, before any goroutine logs.
func Setup(path string) {
	mu.Lock()
	defer mu.Unlock()
	if path == "" {
		return
	}
	file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
}

// Close releases the rotating file sink if one is open.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
}

// Logf writes one diagnostic line to stderr and, if configured, a
// timestamped copy to the rotating file.
func Logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(os.Stderr, msg)
	if file != nil {
		fmt.Fprintf(file, "[%s] %s\n", time.Now().UTC().Format(time.RFC3339), msg)
	}
}

// Warnf writes a Warning-prefixed diagnostic line.
func Warnf(format string, args ...interface{}) {
	Logf("Warning: "+format, args...)
}
