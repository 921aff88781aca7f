package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/untoldecay/RuneEcho/internal/indexer"
)

func TestValidRoleName(t *testing.T) {
	valid := []string{"reviewer", "api_builder", "team-2", "R2"}
	for _, role := range valid {
		if !validRoleName(role) {
			t.Errorf("validRoleName(%q) = false, want true", role)
		}
	}
	invalid := []string{"", "rev iewer", ".hidden", "a/b", "röle"}
	for _, role := range invalid {
		if validRoleName(role) {
			t.Errorf("validRoleName(%q) = true, want false", role)
		}
	}
}

func TestScaffoldCreatesLayout(t *testing.T) {
	root := t.TempDir()
	echoDir := filepath.Join(root, ".claude", "echoes")

	err := scaffold(initOptions{
		EchoDir: echoDir,
		Roles:   "reviewer, builder, bad name",
		Stages:  []string{"retry"},
	})
	if err != nil {
		t.Fatalf("scaffold: %v", err)
	}

	roles, err := indexer.DiscoverRoles(echoDir)
	if err != nil {
		t.Fatalf("DiscoverRoles: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("got %d roles, want 2 (invalid name skipped)", len(roles))
	}
	if roles[0].Role != "builder" || roles[1].Role != "reviewer" {
		t.Errorf("roles = %v, %v", roles[0].Role, roles[1].Role)
	}

	talisman := filepath.Join(filepath.Dir(echoDir), "talisman.yml")
	data, err := os.ReadFile(talisman)
	if err != nil {
		t.Fatalf("talisman.yml not written: %v", err)
	}
	if !strings.Contains(string(data), "retry:\n    enabled: true") {
		t.Errorf("talisman.yml missing enabled retry section:\n%s", data)
	}
	if !strings.Contains(string(data), "reranking:\n    enabled: false") {
		t.Errorf("talisman.yml should leave reranking disabled:\n%s", data)
	}

	// The scaffold marks the index dirty for the next search.
	signalPath := filepath.Join(root, "tmp", ".rune-signals", ".echo-dirty")
	if _, err := os.Stat(signalPath); err != nil {
		t.Errorf("dirty signal not written: %v", err)
	}
}

func TestScaffoldKeepsExistingMemory(t *testing.T) {
	root := t.TempDir()
	echoDir := filepath.Join(root, ".claude", "echoes")
	dir := filepath.Join(echoDir, "reviewer")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	existing := "## Etched — Precious learning (2025-01-01)\nDo not lose this.\n"
	if err := os.WriteFile(filepath.Join(dir, "MEMORY.md"), []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := scaffold(initOptions{EchoDir: echoDir, Roles: "reviewer"}); err != nil {
		t.Fatalf("scaffold: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "MEMORY.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != existing {
		t.Errorf("existing MEMORY.md was overwritten")
	}
}
