package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
)

// InitResult aggregates all information from the initialization process
type InitResult struct {
	EchoDir      string
	DBPath       string
	Roles        []string
	CreatedFiles []string
	TalismanPath string
	Warnings     []string

	// Next steps
	QuickstartCommands []string
}

// RenderInitReport generates a Lipgloss report for the init command
func RenderInitReport(res InitResult, width int) string {
	var sections []string

	// 1. Success Header
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPass).
		Render("✓ echo-search Initialized Successfully")
	sections = append(sections, header, "")

	// 2. Scaffolded files as a checkmarked list
	if len(res.CreatedFiles) > 0 {
		l := list.New().
			Enumerator(func(_ list.Items, i int) string {
				return RenderPass("✓")
			}).
			EnumeratorStyle(lipgloss.NewStyle().MarginRight(1))
		for _, f := range res.CreatedFiles {
			l.Item(f)
		}
		sections = append(sections, l.String(), "")
	}

	// 3. Setup Details Table
	detailsRows := [][]string{
		{"Echo directory", res.EchoDir},
		{"Database", res.DBPath},
		{"Roles", strings.Join(res.Roles, ", ")},
		{"Talisman", res.TalismanPath},
	}

	summaryTable := NewReportTable(width).
		Headers("Component", "Configuration").
		Rows(detailsRows...)
	sections = append(sections, summaryTable.String(), "")

	// 4. Warnings
	if len(res.Warnings) > 0 {
		warnBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarn).
			Padding(0, 1).
			Width(width - 2)

		var warnContent []string
		warnContent = append(warnContent, lipgloss.NewStyle().Bold(true).Foreground(ColorWarn).Render("⚠ Setup Warnings:"))
		for _, w := range res.Warnings {
			warnContent = append(warnContent, "  • "+w)
		}
		sections = append(sections, warnBox.Render(strings.Join(warnContent, "\n")), "")
	}

	// 5. Next Steps
	if len(res.QuickstartCommands) > 0 {
		sections = append(sections, lipgloss.NewStyle().Bold(true).Render("Next Steps:"))
		for _, cmd := range res.QuickstartCommands {
			sections = append(sections, "  • "+RenderAccent(cmd))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
