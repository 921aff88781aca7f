package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var roleDirRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RoleFile is one role's MEMORY.md location.
type RoleFile struct {
	Role string
	Path string
}

// DiscoverRoles lists the role memory files under echoDir: each immediate
// subdirectory with a plain [A-Za-z0-9_-]+ name containing a MEMORY.md.
// Dot-prefixed and whitespace-bearing names are skipped, and nothing is
// traversed deeper. Results come back in sorted role order.
func DiscoverRoles(echoDir string) ([]RoleFile, error) {
	dirEntries, err := os.ReadDir(echoDir)
	if err != nil {
		return nil, fmt.Errorf("cannot read echo directory: %w", err)
	}

	// os.ReadDir sorts by name, which is the processing order.
	var roles []RoleFile
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		name := de.Name()
		if !roleDirRegex.MatchString(name) {
			continue
		}
		memoryPath := filepath.Join(echoDir, name, "MEMORY.md")
		if _, err := os.Stat(memoryPath); err != nil {
			continue
		}
		roles = append(roles, RoleFile{Role: name, Path: memoryPath})
	}
	return roles, nil
}
