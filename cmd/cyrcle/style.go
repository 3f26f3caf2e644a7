package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	labelStyle = lipgloss.NewStyle().
			Bold(true)

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	plain bool
)

func init() {
	// Disable styling if not in a terminal
	plain = !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func render(style lipgloss.Style, text string) string {
	if plain {
		return text
	}
	return style.Render(text)
}

func renderError(msg string) string {
	return render(errorStyle, "✗ "+msg)
}

func printTitle(title string) {
	fmt.Println(render(titleStyle, title))
}

func printSuccess(msg string) {
	fmt.Println(render(successStyle, "✓ "+msg))
}

func printStat(label string, value any) {
	fmt.Printf("  %s %s\n", render(labelStyle, label+":"), render(statStyle, fmt.Sprint(value)))
}
