// Package config owns the two configuration layers of the echo service:
// process environment (read once at startup, viper-backed) and the
// mtime-cached talisman.yml snapshot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
)

var v *viper.Viper

// forbiddenPrefixes are filesystem roots the service refuses to write under.
// Checked against ECHO_DIR and DB_PATH at startup.
var forbiddenPrefixes = []string{
	"/etc", "/usr", "/bin", "/sbin", "/var/run", "/proc", "/sys",
}

// Initialize sets up the viper configuration singleton and validates the
// required environment. Should be called once at application startup;
// a non-nil error is fatal (exit 1) for the callers.
func Initialize() error {
	v = viper.New()

	// Env vars carry no common prefix, so each is bound explicitly.
	_ = v.BindEnv("echo-dir", "ECHO_DIR")
	_ = v.BindEnv("db-path", "DB_PATH")
	_ = v.BindEnv("config-dir", "CLAUDE_CONFIG_DIR")
	_ = v.BindEnv("trace", "RUNE_TRACE")
	_ = v.BindEnv("log-file", "ECHO_LOG_FILE")
	_ = v.BindEnv("weights-profile", "ECHO_WEIGHTS_PROFILE")
	_ = v.BindEnv("weight-relevance", "ECHO_WEIGHT_RELEVANCE")
	_ = v.BindEnv("weight-importance", "ECHO_WEIGHT_IMPORTANCE")
	_ = v.BindEnv("weight-recency", "ECHO_WEIGHT_RECENCY")
	_ = v.BindEnv("weight-proximity", "ECHO_WEIGHT_PROXIMITY")
	_ = v.BindEnv("weight-frequency", "ECHO_WEIGHT_FREQUENCY")

	v.SetDefault("echo-dir", "")
	v.SetDefault("db-path", "")
	v.SetDefault("config-dir", "")
	v.SetDefault("trace", "")
	v.SetDefault("log-file", "")
	v.SetDefault("weights-profile", "")

	if DBPath() == "" {
		return fmt.Errorf("DB_PATH environment variable is required")
	}
	if EchoDir() == "" {
		return fmt.Errorf("ECHO_DIR environment variable is required")
	}
	for _, p := range []string{DBPath(), EchoDir()} {
		if err := checkAllowedPath(p); err != nil {
			return err
		}
	}
	if err := ensureWritableDir(filepath.Dir(DBPath())); err != nil {
		return fmt.Errorf("DB_PATH directory not writable: %w", err)
	}
	return nil
}

// checkAllowedPath rejects paths under system roots the service must never
// touch. The comparison is on the cleaned absolute path.
func checkAllowedPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve path %q: %w", path, err)
	}
	abs = filepath.Clean(abs)
	for _, prefix := range forbiddenPrefixes {
		if abs == prefix || strings.HasPrefix(abs, prefix+string(filepath.Separator)) {
			return fmt.Errorf("path %q resolves under forbidden prefix %s", path, prefix)
		}
	}
	return nil
}

// ensureWritableDir creates dir if missing and probes write access.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return fmt.Errorf("no write access to %s: %w", dir, err)
	}
	return nil
}

func get() *viper.Viper {
	if v == nil {
		// Allow getters before Initialize in tests; bindings only, no validation.
		stub := viper.New()
		_ = stub.BindEnv("echo-dir", "ECHO_DIR")
		_ = stub.BindEnv("db-path", "DB_PATH")
		_ = stub.BindEnv("config-dir", "CLAUDE_CONFIG_DIR")
		_ = stub.BindEnv("trace", "RUNE_TRACE")
		_ = stub.BindEnv("log-file", "ECHO_LOG_FILE")
		_ = stub.BindEnv("weights-profile", "ECHO_WEIGHTS_PROFILE")
		_ = stub.BindEnv("weight-relevance", "ECHO_WEIGHT_RELEVANCE")
		_ = stub.BindEnv("weight-importance", "ECHO_WEIGHT_IMPORTANCE")
		_ = stub.BindEnv("weight-recency", "ECHO_WEIGHT_RECENCY")
		_ = stub.BindEnv("weight-proximity", "ECHO_WEIGHT_PROXIMITY")
		_ = stub.BindEnv("weight-frequency", "ECHO_WEIGHT_FREQUENCY")
		v = stub
	}
	return v
}

// EchoDir returns the echo root directory (ECHO_DIR).
func EchoDir() string {
	return get().GetString("echo-dir")
}

// DBPath returns the SQLite database path (DB_PATH).
func DBPath() string {
	return get().GetString("db-path")
}

// ConfigDir returns the optional secondary talisman.yml search root
// (CLAUDE_CONFIG_DIR).
func ConfigDir() string {
	return get().GetString("config-dir")
}

// TraceEnabled reports whether RUNE_TRACE=1 stage timing is on.
func TraceEnabled() bool {
	return get().GetString("trace") == "1"
}

// LogFile returns the optional rotating diagnostic log path (ECHO_LOG_FILE).
func LogFile() string {
	return get().GetString("log-file")
}

// WeightsProfile returns the optional TOML weight profile path
// (ECHO_WEIGHTS_PROFILE).
func WeightsProfile() string {
	return get().GetString("weights-profile")
}

// WeightVar returns the raw value of ECHO_WEIGHT_<FACTOR> for factor names
// relevance, importance, recency, proximity, frequency. Empty when unset.
func WeightVar(factor string) string {
	return get().GetString("weight-" + strings.ToLower(factor))
}

// Reset clears the singleton so tests can re-Initialize against a fresh
// environment.
func Reset() {
	v = nil
}
