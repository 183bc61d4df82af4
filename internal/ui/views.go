package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alnah/go-shadowing/internal/format"
)

const barWidth = 40

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5F87FF"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okIcon     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Render("✓")
	failIcon   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000")).Render("✗")
	runIcon    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Render("⚙")
	queueIcon  = dimStyle.Render("○")
	footerBox  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#888888")).
			Padding(0, 1)
)

// renderProcessingView renders the header, the file list and the footer.
func renderProcessingView(m Model) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Shadowing"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Inserting silences into %d file(s)", len(m.Files))))
	b.WriteString("\n\n")

	for _, f := range m.Files {
		b.WriteString(renderFileEntry(f, m))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(renderFooter(m))

	return b.String()
}

func renderFileEntry(f FileProgress, m Model) string {
	name := filepath.Base(f.Input)

	switch f.Status {
	case StatusDone:
		line := fmt.Sprintf(" %s %s → %s", okIcon, name, filepath.Base(f.Output))
		return line + "\n   " + dimStyle.Render(fileStats(f))
	case StatusFailed:
		return fmt.Sprintf(" %s %s\n   Error: %v", failIcon, name, f.Err)
	case StatusRunning:
		elapsed := m.now().Sub(f.StartTime).Seconds()
		return fmt.Sprintf(" %s %s\n   %s", runIcon, name, dimStyle.Render(fmt.Sprintf("working... %.1fs", elapsed)))
	default:
		return fmt.Sprintf(" %s %s", queueIcon, dimStyle.Render(name))
	}
}

// fileStats summarizes a finished file.
func fileStats(f FileProgress) string {
	s := fmt.Sprintf("%d chunks | %s → %s (%s) | %.1fs",
		f.Chunks,
		format.Timestamp(f.Source),
		format.Timestamp(f.Stretched),
		format.Stretch(f.Stretched, f.Source),
		f.Elapsed.Seconds())
	if f.URL != "" {
		s += "\n   " + f.URL
	}
	return s
}

func renderFooter(m Model) string {
	finished := m.Completed + m.Failed
	var progress float64
	if len(m.Files) > 0 {
		progress = float64(finished) / float64(len(m.Files))
	}

	content := renderProgressBar(progress, barWidth) + "\n" +
		fmt.Sprintf("%d/%d finished (%d failed)", finished, len(m.Files), m.Failed)
	if m.Cancelling {
		content += "\n" + dimStyle.Render("Cancelling... press Ctrl+C again to quit immediately.")
	}
	return footerBox.Render(content)
}

// renderProgressBar renders a progress bar.
func renderProgressBar(progress float64, width int) string {
	filled := min(max(int(progress*float64(width)), 0), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %d%%", bar, int(progress*100))
}

// renderSummary renders the final view once every file has a result.
func renderSummary(m Model) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Done"))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" in %.1fs", m.now().Sub(m.StartTime).Seconds())))
	b.WriteString("\n\n")

	for _, f := range m.Files {
		b.WriteString(renderFileEntry(f, m))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d succeeded, %d failed\n", m.Completed, m.Failed))
	return b.String()
}
