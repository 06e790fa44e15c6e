package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/mmcdole/covergen/internal/service"
)

// Color palette
var (
	Accent    = lipgloss.Color("#E5A00D")
	DimGray   = lipgloss.Color("#6B7280")
	LightGray = lipgloss.Color("#9CA3AF")
	White     = lipgloss.Color("#F9FAFB")
	Green     = lipgloss.Color("#10B981")
	Red       = lipgloss.Color("#EF4444")
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true).
			Padding(0, 1)

	CellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	BorderStyle = lipgloss.NewStyle().
			Foreground(DimGray)
)

// statusStyles colors each outcome status
var statusStyles = map[service.Status]lipgloss.Style{
	service.StatusUpdated:  lipgloss.NewStyle().Foreground(Green),
	service.StatusSkipped:  lipgloss.NewStyle().Foreground(LightGray),
	service.StatusExcluded: lipgloss.NewStyle().Foreground(DimGray),
	service.StatusEmpty:    lipgloss.NewStyle().Foreground(Accent),
	service.StatusFailed:   lipgloss.NewStyle().Foreground(Red),
}

// isTerminal reports whether f is attached to a terminal
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// SpinnerFrames animates the server detection prompt
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// clearSpinnerLine returns the cursor to the start of a cleared line
const clearSpinnerLine = "\r\033[K"
