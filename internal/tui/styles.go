package tui

import "github.com/charmbracelet/lipgloss"

// theme is the palette shared by every screen
var theme = struct {
	Title    lipgloss.Style
	Section  lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Idle     lipgloss.Style
	OK       lipgloss.Style
	Error    lipgloss.Style
	Muted    lipgloss.Style
	Hint     lipgloss.Style
	Selected lipgloss.Style
	Key      lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff")).MarginBottom(1),
	Section:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd700")).MarginTop(1),
	Label:    lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af")),
	Value:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")),
	Idle:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaf00")),
	OK:       lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd75f")),
	Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")),
	Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
	Hint:     lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff")).MarginTop(1),
	Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#00d7ff")).Bold(true),
	Key:      lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af")).Bold(true),
}
