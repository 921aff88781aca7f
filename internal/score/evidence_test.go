package score

import (
	"fmt"
	"strings"
	"testing"
)

func TestEvidencePathsFromContent(t *testing.T) {
	content := "JWT validation lives in `src/auth/jwt.go` and reads " +
		"`config/auth.yaml`; see `README.md` for background and " +
		"`NOTES` for history."
	paths := EvidencePaths(content, "")
	want := []string{"src/auth/jwt.go", "config/auth.yaml"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestEvidencePathsFromSource(t *testing.T) {
	source := "refactor of src/auth/session.go per https://example.com/rfc and src/auth/jwt.go:42"
	paths := EvidencePaths("", source)
	// URL and file:line tokens carry a colon and are dropped.
	if len(paths) != 1 || paths[0] != "src/auth/session.go" {
		t.Errorf("paths = %v, want [src/auth/session.go]", paths)
	}
}

func TestEvidencePathsDedupe(t *testing.T) {
	content := "`src/auth/jwt.go` and again `src/auth/jwt.go`"
	paths := EvidencePaths(content, "src/auth/jwt.go")
	if len(paths) != 1 {
		t.Errorf("expected deduped single path, got %v", paths)
	}
}

func TestEvidencePathsCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&sb, "`pkg/mod%02d/file.go` ", i)
	}
	paths := EvidencePaths(sb.String(), "")
	if len(paths) != maxEvidencePaths {
		t.Errorf("path count = %d, want %d", len(paths), maxEvidencePaths)
	}
}

func TestEvidencePathsNormalizesSeparators(t *testing.T) {
	paths := EvidencePaths("", "src/win\\style.go")
	if len(paths) != 1 || paths[0] != "src/win/style.go" {
		t.Errorf("paths = %v, want [src/win/style.go]", paths)
	}
}

func TestEvidencePathsEmpty(t *testing.T) {
	if got := EvidencePaths("", ""); len(got) != 0 {
		t.Errorf("expected no paths, got %v", got)
	}
}
