package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Talisman is the parsed talisman.yml. Only the echoes section is
// recognized; anything else in the file is ignored.
type Talisman struct {
	Echoes Echoes `yaml:"echoes"`
}

// Echoes holds the optional-stage switches for the retrieval pipeline.
type Echoes struct {
	Decomposition  Decomposition  `yaml:"decomposition"`
	Reranking      Reranking      `yaml:"reranking"`
	Retry          Retry          `yaml:"retry"`
	SemanticGroups SemanticGroups `yaml:"semantic_groups"`
}

// Decomposition controls facet decomposition of the incoming query.
type Decomposition struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`
}

// Reranking controls the external LLM rerank stage.
type Reranking struct {
	Enabled       bool    `yaml:"enabled"`
	Threshold     int     `yaml:"threshold"`
	MaxCandidates int     `yaml:"max_candidates"`
	Timeout       float64 `yaml:"timeout"`
	Command       string  `yaml:"command"`
	Backend       string  `yaml:"backend"`
}

// Retry controls failed-match retry injection.
type Retry struct {
	Enabled bool `yaml:"enabled"`
}

// SemanticGroups controls group expansion of scored results.
type SemanticGroups struct {
	ExpansionEnabled bool    `yaml:"expansion_enabled"`
	Discount         float64 `yaml:"discount"`
	MaxExpansion     int     `yaml:"max_expansion"`
}

// Stage parameter defaults, applied to zero values after a successful parse.
const (
	DefaultRerankThreshold     = 25
	DefaultRerankMaxCandidates = 40
	DefaultRerankTimeout       = 4.0
	DefaultDecomposeTimeout    = 3.0
	DefaultExpansionDiscount   = 0.7
	DefaultMaxExpansion        = 5
	DefaultLLMCommand          = "claude"
	BackendCLI                 = "cli"
	BackendAPI                 = "api"
)

func (t *Talisman) applyDefaults() {
	r := &t.Echoes.Reranking
	if r.Threshold <= 0 {
		r.Threshold = DefaultRerankThreshold
	}
	if r.MaxCandidates <= 0 {
		r.MaxCandidates = DefaultRerankMaxCandidates
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultRerankTimeout
	}
	if r.Command == "" {
		r.Command = DefaultLLMCommand
	}
	if r.Backend == "" {
		r.Backend = BackendCLI
	}
	d := &t.Echoes.Decomposition
	if d.Command == "" {
		d.Command = DefaultLLMCommand
	}
	g := &t.Echoes.SemanticGroups
	switch {
	case g.Discount == 0:
		// Unset in YAML; an explicit 0 is indistinguishable and also
		// gets the default.
		g.Discount = DefaultExpansionDiscount
	case g.Discount < 0:
		g.Discount = 0
	case g.Discount > 1:
		g.Discount = 1
	}
	if g.MaxExpansion <= 0 {
		g.MaxExpansion = DefaultMaxExpansion
	}
}

type cachedTalisman struct {
	cfg     *Talisman
	path    string
	modTime time.Time
}

// TalismanLoader resolves and caches talisman.yml. Load is cheap on the hot
// path: a stat per call, reparse only when the file mtime changes. The
// snapshot is swapped atomically so concurrent readers never see a partial
// config.
type TalismanLoader struct {
	paths  []string
	cached atomic.Pointer[cachedTalisman]
}

// NewTalismanLoader builds the loader with the search order
// <echo_dir>/../talisman.yml, then <config_dir>/talisman.yml.
func NewTalismanLoader(echoDir, configDir string) *TalismanLoader {
	var paths []string
	if echoDir != "" {
		paths = append(paths, filepath.Join(filepath.Dir(echoDir), "talisman.yml"))
	}
	if configDir != "" {
		paths = append(paths, filepath.Join(configDir, "talisman.yml"))
	}
	return &TalismanLoader{paths: paths}
}

// Load returns the current talisman snapshot. A missing or malformed file
// yields the empty config, which disables every optional stage.
func (l *TalismanLoader) Load() *Talisman {
	path, modTime, ok := l.resolve()
	if !ok {
		empty := &Talisman{}
		empty.applyDefaults()
		return empty
	}

	if c := l.cached.Load(); c != nil && c.path == path && c.modTime.Equal(modTime) {
		return c.cfg
	}

	cfg := parseTalisman(path)
	l.cached.Store(&cachedTalisman{cfg: cfg, path: path, modTime: modTime})
	return cfg
}

// resolve finds the first existing candidate path and its mtime.
func (l *TalismanLoader) resolve() (string, time.Time, bool) {
	for _, p := range l.paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, info.ModTime(), true
		}
	}
	return "", time.Time{}, false
}

func parseTalisman(path string) *Talisman {
	cfg := &Talisman{}
	data, err := os.ReadFile(path)
	if err != nil {
		cfg.applyDefaults()
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		// Malformed YAML disables the optional stages rather than failing.
		cfg = &Talisman{}
	}
	cfg.applyDefaults()
	return cfg
}
