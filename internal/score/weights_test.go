package score

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func clearWeightEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ECHO_WEIGHT_RELEVANCE", "ECHO_WEIGHT_IMPORTANCE", "ECHO_WEIGHT_RECENCY",
		"ECHO_WEIGHT_PROXIMITY", "ECHO_WEIGHT_FREQUENCY", "ECHO_WEIGHTS_PROFILE",
	} {
		t.Setenv(k, "")
	}
}

func weightSum(w Weights) float64 {
	return w.Relevance + w.Importance + w.Recency + w.Proximity + w.Frequency
}

func TestLoadWeightsDefaults(t *testing.T) {
	clearWeightEnv(t)
	w := LoadWeights()
	if w != DefaultWeights() {
		t.Errorf("weights = %+v, want defaults", w)
	}
	if math.Abs(weightSum(w)-1.0) > 1e-9 {
		t.Errorf("default weights sum = %v, want 1.0", weightSum(w))
	}
}

func TestLoadWeightsEnvOverrideNormalizes(t *testing.T) {
	clearWeightEnv(t)
	t.Setenv("ECHO_WEIGHT_RELEVANCE", "0.5")

	w := LoadWeights()
	// 0.5 + 0.3 + 0.2 + 0.1 + 0.1 = 1.2, rescaled proportionally.
	if math.Abs(weightSum(w)-1.0) > 1e-9 {
		t.Fatalf("weights sum = %v, want 1.0", weightSum(w))
	}
	want := 0.5 / 1.2
	if math.Abs(w.Relevance-want) > 1e-9 {
		t.Errorf("relevance = %v, want %v", w.Relevance, want)
	}
}

func TestLoadWeightsInvalidEnvFallsBack(t *testing.T) {
	clearWeightEnv(t)
	t.Setenv("ECHO_WEIGHT_RECENCY", "not-a-number")
	t.Setenv("ECHO_WEIGHT_PROXIMITY", "-0.4")

	w := LoadWeights()
	if w != DefaultWeights() {
		t.Errorf("weights = %+v, want defaults after invalid overrides", w)
	}
}

func TestLoadWeightsZeroSumFallsBack(t *testing.T) {
	clearWeightEnv(t)
	for _, k := range []string{
		"ECHO_WEIGHT_RELEVANCE", "ECHO_WEIGHT_IMPORTANCE", "ECHO_WEIGHT_RECENCY",
		"ECHO_WEIGHT_PROXIMITY", "ECHO_WEIGHT_FREQUENCY",
	} {
		t.Setenv(k, "0")
	}
	w := LoadWeights()
	if w != DefaultWeights() {
		t.Errorf("weights = %+v, want defaults when everything is zeroed", w)
	}
}

func TestLoadWeightsProfile(t *testing.T) {
	clearWeightEnv(t)
	path := filepath.Join(t.TempDir(), "weights.toml")
	profile := `[weights]
relevance = 0.4
importance = 0.4
recency = 0.1
proximity = 0.05
frequency = 0.05
`
	if err := os.WriteFile(path, []byte(profile), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	t.Setenv("ECHO_WEIGHTS_PROFILE", path)

	w := LoadWeights()
	if math.Abs(w.Relevance-0.4) > 1e-9 || math.Abs(w.Recency-0.1) > 1e-9 {
		t.Errorf("profile values not applied: %+v", w)
	}
}

func TestLoadWeightsEnvBeatsProfile(t *testing.T) {
	clearWeightEnv(t)
	path := filepath.Join(t.TempDir(), "weights.toml")
	profile := `[weights]
relevance = 0.9
importance = 0.025
recency = 0.025
proximity = 0.025
frequency = 0.025
`
	if err := os.WriteFile(path, []byte(profile), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	t.Setenv("ECHO_WEIGHTS_PROFILE", path)
	t.Setenv("ECHO_WEIGHT_RELEVANCE", "0.3")

	w := LoadWeights()
	sum := weightSum(w)
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("weights sum = %v, want 1.0", sum)
	}
	// (0.3, 0.025, 0.025, 0.025, 0.025) rescaled: relevance 0.75.
	if math.Abs(w.Relevance-0.75) > 1e-9 {
		t.Errorf("relevance = %v, want env override (0.75 after rescale)", w.Relevance)
	}
}

func TestLoadWeightsMissingProfileWarnsAndContinues(t *testing.T) {
	clearWeightEnv(t)
	t.Setenv("ECHO_WEIGHTS_PROFILE", filepath.Join(t.TempDir(), "absent.toml"))
	w := LoadWeights()
	if w != DefaultWeights() {
		t.Errorf("weights = %+v, want defaults when profile is missing", w)
	}
}
