package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTalisman(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "talisman.yml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTalismanDiscountClamped(t *testing.T) {
	cases := []struct {
		name     string
		discount string
		want     float64
	}{
		{"above one clamps to one", "discount: 1.5", 1.0},
		{"negative clamps to zero", "discount: -0.3", 0.0},
		{"unset gets default", "", DefaultExpansionDiscount},
		{"in range kept", "discount: 0.4", 0.4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			content := "echoes:\n  semantic_groups:\n    expansion_enabled: true\n"
			if tc.discount != "" {
				content += "    " + tc.discount + "\n"
			}
			writeTalisman(t, dir, content)

			cfg := NewTalismanLoader("", dir).Load()
			if got := cfg.Echoes.SemanticGroups.Discount; got != tc.want {
				t.Errorf("discount = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTalismanMissingFileDisablesStages(t *testing.T) {
	cfg := NewTalismanLoader("", t.TempDir()).Load()

	e := cfg.Echoes
	if e.Decomposition.Enabled || e.Reranking.Enabled || e.Retry.Enabled || e.SemanticGroups.ExpansionEnabled {
		t.Errorf("missing talisman should disable all stages, got %+v", e)
	}
	if e.SemanticGroups.Discount != DefaultExpansionDiscount {
		t.Errorf("discount = %v, want %v", e.SemanticGroups.Discount, DefaultExpansionDiscount)
	}
	if e.Reranking.Threshold != DefaultRerankThreshold {
		t.Errorf("threshold = %d, want %d", e.Reranking.Threshold, DefaultRerankThreshold)
	}
}
