package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/untoldecay/RuneEcho/internal/types"
)

var (
	entryBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorMuted).
		Padding(0, 1).
		Margin(1, 0)

	entryTitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	entryMetaStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true, false, false, false).
		BorderForeground(ColorMuted)
)

// EntryView aggregates an entry with the usage data shown by `show`.
type EntryView struct {
	Entry       types.Entry
	AccessCount int
	GroupIDs    []string
	Failures    int
}

// RenderEntryBox renders the entry header and metadata inside a rounded box.
// The markdown body is rendered separately so glamour owns its own width.
func RenderEntryBox(v EntryView) string {
	var sections []string

	title := v.Entry.ID
	if v.Entry.Tags != "" {
		title = fmt.Sprintf("%s · %s", v.Entry.ID, v.Entry.Tags)
	}
	sections = append(sections, entryTitleStyle.Render(title))

	var meta []string
	meta = append(meta, fmt.Sprintf("Role: %s   Layer: %s", v.Entry.Role, v.Entry.Layer))
	if v.Entry.Date != "" {
		meta = append(meta, "Date: "+v.Entry.Date)
	}
	if v.Entry.Source != "" {
		meta = append(meta, "Source: "+v.Entry.Source)
	}
	meta = append(meta, fmt.Sprintf("File: %s:%d", v.Entry.FilePath, v.Entry.LineNumber))
	meta = append(meta, fmt.Sprintf("Accessed: %d times", v.AccessCount))
	if len(v.GroupIDs) > 0 {
		meta = append(meta, "Groups: "+strings.Join(v.GroupIDs, ", "))
	}
	if v.Failures > 0 {
		meta = append(meta, RenderWarn(fmt.Sprintf("Pending retries: %d", v.Failures)))
	}
	sections = append(sections, entryMetaStyle.Render(strings.Join(meta, "\n")))

	return entryBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// PlainEntry renders the entry without styling, for non-TTY output.
func PlainEntry(v EntryView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\n", v.Entry.ID)
	fmt.Fprintf(&b, "role: %s\n", v.Entry.Role)
	fmt.Fprintf(&b, "layer: %s\n", v.Entry.Layer)
	if v.Entry.Date != "" {
		fmt.Fprintf(&b, "date: %s\n", v.Entry.Date)
	}
	if v.Entry.Source != "" {
		fmt.Fprintf(&b, "source: %s\n", v.Entry.Source)
	}
	fmt.Fprintf(&b, "file: %s:%d\n", v.Entry.FilePath, v.Entry.LineNumber)
	fmt.Fprintf(&b, "accessed: %d\n", v.AccessCount)
	if len(v.GroupIDs) > 0 {
		fmt.Fprintf(&b, "groups: %s\n", strings.Join(v.GroupIDs, ", "))
	}
	b.WriteString("\n")
	b.WriteString(v.Entry.Content)
	b.WriteString("\n")
	return b.String()
}
