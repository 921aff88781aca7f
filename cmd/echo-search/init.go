package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/untoldecay/RuneEcho/internal/config"
	"github.com/untoldecay/RuneEcho/internal/signals"
	"github.com/untoldecay/RuneEcho/internal/ui"
)

var initYes bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold an echo directory and talisman.yml",
	Long: `Create the role directory layout under the echo root, drop a starter
MEMORY.md per role, and write a talisman.yml with the chosen pipeline
stages. Interactive unless --yes is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := initOptions{
			EchoDir: config.EchoDir(),
			Roles:   "reviewer, builder",
			Stages:  []string{"retry", "semantic_groups"},
		}
		if opts.EchoDir == "" {
			opts.EchoDir = filepath.Join(".", ".claude", "echoes")
		}

		if !initYes && ui.IsTerminal() {
			if err := runInitForm(&opts); err != nil {
				return err
			}
		}
		return scaffold(opts)
	},
}

type initOptions struct {
	EchoDir string
	Roles   string
	Stages  []string
}

func runInitForm(opts *initOptions) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("echo-search init").
				Description("Scaffold the MEMORY.md layout and pipeline configuration."),
			huh.NewInput().
				Title("Echo directory").
				Description("Root holding one subdirectory per role").
				Value(&opts.EchoDir),
			huh.NewInput().
				Title("Roles").
				Description("Comma-separated role names ([A-Za-z0-9_-]+)").
				Value(&opts.Roles),
			huh.NewMultiSelect[string]().
				Title("Optional pipeline stages").
				Options(
					huh.NewOption("Retry injection (re-surface past misses)", "retry"),
					huh.NewOption("Semantic group expansion", "semantic_groups"),
					huh.NewOption("Query decomposition (needs external CLI)", "decomposition"),
					huh.NewOption("LLM reranking (needs external CLI)", "reranking"),
				).
				Value(&opts.Stages),
		),
	)
	return form.Run()
}

func scaffold(opts initOptions) error {
	res := ui.InitResult{
		EchoDir: opts.EchoDir,
		DBPath:  config.DBPath(),
	}

	for _, raw := range strings.Split(opts.Roles, ",") {
		role := strings.TrimSpace(raw)
		if role == "" {
			continue
		}
		if !validRoleName(role) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("skipped invalid role name %q", role))
			continue
		}
		dir := filepath.Join(opts.EchoDir, role)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create role directory %s: %w", dir, err)
		}
		res.Roles = append(res.Roles, role)

		memPath := filepath.Join(dir, "MEMORY.md")
		if _, err := os.Stat(memPath); err == nil {
			continue // never overwrite an existing memory file
		}
		if err := os.WriteFile(memPath, []byte(starterMemory(role)), 0o644); err != nil {
			return fmt.Errorf("cannot write %s: %w", memPath, err)
		}
		res.CreatedFiles = append(res.CreatedFiles, memPath)
	}

	talismanPath := filepath.Join(filepath.Dir(filepath.Clean(opts.EchoDir)), "talisman.yml")
	if _, err := os.Stat(talismanPath); err == nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("kept existing %s", talismanPath))
	} else {
		if err := os.WriteFile(talismanPath, []byte(starterTalisman(opts.Stages)), 0o644); err != nil {
			return fmt.Errorf("cannot write %s: %w", talismanPath, err)
		}
		res.CreatedFiles = append(res.CreatedFiles, talismanPath)
	}
	res.TalismanPath = talismanPath

	res.QuickstartCommands = []string{
		fmt.Sprintf("export ECHO_DIR=%s", opts.EchoDir),
		"export DB_PATH=<path-to>/echo.db",
		"echo-search --reindex",
		"echo-search stats",
	}

	if ui.IsTerminal() {
		fmt.Println(ui.RenderInitReport(res, ui.GetWidth()))
	} else {
		fmt.Printf("Initialized %d roles under %s\n", len(res.Roles), opts.EchoDir)
		for _, f := range res.CreatedFiles {
			fmt.Printf("created %s\n", f)
		}
		for _, w := range res.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
	}

	// The layout changed under the server's feet; make the next search notice.
	if err := signals.Write(opts.EchoDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot write dirty signal: %v\n", err)
	}
	return nil
}

func validRoleName(role string) bool {
	for _, r := range role {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return role != ""
}

func starterMemory(role string) string {
	today := time.Now().Format("2006-01-02")
	return fmt.Sprintf(`# %s memory

## Notes — How echoes work (%s)
Entries live under H2 headers of the form
"## <Layer> — <Title> (<YYYY-MM-DD>)" where the layer is one of
Etched, Inscribed, Traced, Notes or Observations. An optional
**Source**: `+"`path/to/file.go`"+` line on the first body line ties the
entry to code for proximity ranking. Replace this note with real
learnings; empty-bodied entries are ignored.
`, role, today)
}

func starterTalisman(stages []string) string {
	enabled := make(map[string]bool, len(stages))
	for _, s := range stages {
		enabled[s] = true
	}
	var b strings.Builder
	b.WriteString("echoes:\n")
	b.WriteString(fmt.Sprintf("  decomposition:\n    enabled: %t\n", enabled["decomposition"]))
	b.WriteString(fmt.Sprintf("  reranking:\n    enabled: %t\n    threshold: 25\n    max_candidates: 40\n    timeout: 4.0\n", enabled["reranking"]))
	b.WriteString(fmt.Sprintf("  retry:\n    enabled: %t\n", enabled["retry"]))
	b.WriteString(fmt.Sprintf("  semantic_groups:\n    expansion_enabled: %t\n    discount: 0.7\n    max_expansion: 10\n", enabled["semantic_groups"]))
	return b.String()
}

func init() {
	initCmd.Flags().BoolVar(&initYes, "yes", false, "accept defaults without prompting")
	rootCmd.AddCommand(initCmd)
}
