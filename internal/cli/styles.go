package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#5F87FF")
	errorColor   = lipgloss.Color("#A40000")
	okColor      = lipgloss.Color("#00AA00")
	mutedColor   = lipgloss.Color("#888888")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	OKStyle = lipgloss.NewStyle().
		Foreground(okColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// PrintError writes err to w with a styled prefix.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("Error:"), err)
}
