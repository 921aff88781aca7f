package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/untoldecay/RuneEcho/internal/types"
)

// RenderStatsReport renders the echo store summary: a key/value table plus
// role and layer breakdown trees.
func RenderStatsReport(stats *types.Stats, dbPath string, width int) string {
	var sections []string

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent).
		Render("Echo store")
	sections = append(sections, header, "")

	lastIndexed := stats.LastIndexed
	if lastIndexed == "" {
		lastIndexed = "never"
	}

	rows := [][]string{
		{"Database", dbPath},
		{"Entries", fmt.Sprintf("%d", stats.TotalEntries)},
		{"Access rows", fmt.Sprintf("%d", stats.TotalAccess)},
		{"Semantic groups", fmt.Sprintf("%d", stats.TotalGroups)},
		{"Last indexed", lastIndexed},
	}

	summary := NewReportTable(width).
		Headers("Store", "Value").
		Rows(rows...)
	sections = append(sections, summary.String(), "")

	if breakdown := renderBreakdownTree(stats); breakdown != "" {
		sections = append(sections, breakdown)
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderBreakdownTree shows per-role and per-layer entry counts as a tree.
func renderBreakdownTree(stats *types.Stats) string {
	if len(stats.ByRole) == 0 && len(stats.ByLayer) == 0 {
		return ""
	}

	t := tree.New().Root(fmt.Sprintf("%d echoes", stats.TotalEntries))
	t.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
	t.RootStyle(lipgloss.NewStyle().Bold(true).Foreground(ColorAccent))

	if len(stats.ByRole) > 0 {
		roles := tree.New().Root("by role")
		roles.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
		for _, name := range sortedCountKeys(stats.ByRole) {
			roles.Child(fmt.Sprintf("%s (%d)", name, stats.ByRole[name]))
		}
		t.Child(roles)
	}

	if len(stats.ByLayer) > 0 {
		layers := tree.New().Root("by layer")
		layers.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
		for _, name := range sortedCountKeys(stats.ByLayer) {
			layers.Child(fmt.Sprintf("%s (%d)", name, stats.ByLayer[name]))
		}
		t.Child(layers)
	}

	return t.String()
}

// PlainStats renders the same information without styling, for non-TTY output.
func PlainStats(stats *types.Stats, dbPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "database: %s\n", dbPath)
	fmt.Fprintf(&b, "entries: %d\n", stats.TotalEntries)
	fmt.Fprintf(&b, "access rows: %d\n", stats.TotalAccess)
	fmt.Fprintf(&b, "semantic groups: %d\n", stats.TotalGroups)
	if stats.LastIndexed != "" {
		fmt.Fprintf(&b, "last indexed: %s\n", stats.LastIndexed)
	}
	for _, role := range sortedCountKeys(stats.ByRole) {
		fmt.Fprintf(&b, "role %s: %d\n", role, stats.ByRole[role])
	}
	for _, layer := range sortedCountKeys(stats.ByLayer) {
		fmt.Fprintf(&b, "layer %s: %d\n", layer, stats.ByLayer[layer])
	}
	return b.String()
}

func sortedCountKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
