package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"plgn/internal/apply"
	"plgn/internal/preview"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7dd3fc"))

	addedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22c55e"))

	removedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ef4444"))

	hunkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a78bfa"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6b7280"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#f59e0b"))
)

// renderPreview prints colored unified diffs plus a per-file summary line.
func renderPreview(w io.Writer, result *preview.Result) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Proposed changes: %s", result.Summary)))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("confidence %.0f%%", result.Confidence*100)))

	for _, fd := range result.Diffs {
		fmt.Fprintf(w, "\n%s (%s, +%d -%d)\n",
			headerStyle.Render(fd.Path), fd.Action, fd.Additions, fd.Deletions)
		for _, line := range strings.Split(strings.TrimRight(fd.Diff, "\n"), "\n") {
			fmt.Fprintln(w, renderDiffLine(line))
		}
	}
}

func renderDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "@@"):
		return hunkStyle.Render(line)
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return mutedStyle.Render(line)
	case strings.HasPrefix(line, "+"):
		return addedStyle.Render(line)
	case strings.HasPrefix(line, "-"):
		return removedStyle.Render(line)
	default:
		return line
	}
}

// renderApplyResult prints what was written and what was skipped.
func renderApplyResult(w io.Writer, result *apply.Result) {
	for _, path := range result.Applied {
		fmt.Fprintf(w, "%s %s\n", addedStyle.Render("applied"), path)
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(w, "%s %s: %s\n", warnStyle.Render("skipped"), s.Path, s.Reason)
	}
	fmt.Fprintf(w, "%d applied, %d skipped\n", len(result.Applied), len(result.Skipped))
}
