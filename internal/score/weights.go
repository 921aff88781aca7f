package score

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/untoldecay/RuneEcho/internal/config"
)

// Weights are the factor multipliers of the composite score. They always
// sum to 1.0 after loading.
type Weights struct {
	Relevance  float64
	Importance float64
	Recency    float64
	Proximity  float64
	Frequency  float64
}

// DefaultWeights returns the built-in factor weights.
func DefaultWeights() Weights {
	return Weights{
		Relevance:  0.30,
		Importance: 0.30,
		Recency:    0.20,
		Proximity:  0.10,
		Frequency:  0.10,
	}
}

// weightsProfile is the shape of an ECHO_WEIGHTS_PROFILE file:
//
//	[weights]
//	relevance = 0.4
//	recency = 0.3
type weightsProfile struct {
	Weights map[string]float64 `toml:"weights"`
}

// LoadWeights resolves scoring weights once at startup: built-in defaults,
// then the optional TOML profile, then ECHO_WEIGHT_* overrides. Invalid or
// negative values warn on stderr and keep the previous layer's value. The
// final vector is normalized to sum 1.0.
func LoadWeights() Weights {
	w := DefaultWeights()
	if path := config.WeightsProfile(); path != "" {
		applyProfile(&w, path)
	}
	applyEnv(&w)
	return normalizeWeights(w)
}

func applyProfile(w *Weights, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot read weights profile %s: %v\n", path, err)
		return
	}
	var profile weightsProfile
	if err := toml.Unmarshal(data, &profile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot parse weights profile %s: %v\n", path, err)
		return
	}
	for name, value := range profile.Weights {
		dst := factorField(w, name)
		if dst == nil {
			fmt.Fprintf(os.Stderr, "Warning: unknown weight %q in profile %s\n", name, path)
			continue
		}
		if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
			fmt.Fprintf(os.Stderr, "Warning: invalid weight %s=%v in profile %s, keeping default\n", name, value, path)
			continue
		}
		*dst = value
	}
}

func applyEnv(w *Weights) {
	for _, name := range []string{"relevance", "importance", "recency", "proximity", "frequency"} {
		raw := config.WeightVar(name)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
			fmt.Fprintf(os.Stderr, "Warning: invalid ECHO_WEIGHT_%s=%q, using default\n", strings.ToUpper(name), raw)
			continue
		}
		*factorField(w, name) = value
	}
}

func factorField(w *Weights, name string) *float64 {
	switch name {
	case "relevance":
		return &w.Relevance
	case "importance":
		return &w.Importance
	case "recency":
		return &w.Recency
	case "proximity":
		return &w.Proximity
	case "frequency":
		return &w.Frequency
	}
	return nil
}

// normalizeWeights rescales so factors sum to 1.0. A non-positive sum
// means the configuration zeroed everything out, which falls back to the
// defaults with a warning.
func normalizeWeights(w Weights) Weights {
	sum := w.Relevance + w.Importance + w.Recency + w.Proximity + w.Frequency
	if sum <= 0 {
		fmt.Fprintf(os.Stderr, "Warning: scoring weights sum to %v, using defaults\n", sum)
		return DefaultWeights()
	}
	if math.Abs(sum-1.0) <= 1e-6 {
		return w
	}
	w.Relevance /= sum
	w.Importance /= sum
	w.Recency /= sum
	w.Proximity /= sum
	w.Frequency /= sum
	return w
}
