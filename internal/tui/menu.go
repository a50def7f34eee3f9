package tui

import (
	"fmt"
	"strings"
)

type helpRow struct {
	keys string
	desc string
}

var helpSections = []struct {
	title string
	rows  []helpRow
}{
	{"Navigation", []helpRow{
		{"1, 2, ?", "Jump to status, plans or help"},
		{"↑ / ↓", "Navigate menu items"},
		{"Enter/Space", "Select highlighted item"},
		{"Esc", "Return to main menu"},
		{"q / Ctrl+C", "Quit (the daemon keeps running)"},
	}},
	{"Any Screen", []helpRow{
		{"t", "Toggle auto-suspend"},
		{"r", "Re-read daemon state now"},
	}},
}

func (m Model) renderMenu() string {
	var b strings.Builder

	b.WriteString(theme.Title.Render("idlepower: Main Menu"))
	b.WriteString("\n\n")

	for i, item := range DefaultMenuItems() {
		line := fmt.Sprintf("[%s] %s", item.Key, item.Label)
		if i == m.selection {
			b.WriteString(theme.Selected.Render(line))
		} else {
			b.WriteString(theme.Value.Render(line))
		}
		b.WriteString("\n")
		b.WriteString(theme.Muted.PaddingLeft(2).Render(item.Description))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(theme.Hint.Render("Navigate: ↑/↓ or numbers | Select: Enter/Space | Back: Esc | Quit: q"))
	b.WriteString("\n")

	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(theme.Error.Bold(true).Render("⚠ " + m.lastError))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderHelpScreen() string {
	var b strings.Builder

	b.WriteString(theme.Title.Render("Help: Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, section := range helpSections {
		b.WriteString(theme.Section.Render(section.title))
		b.WriteString("\n")
		for _, row := range section.rows {
			b.WriteString(theme.Key.Render(fmt.Sprintf("%-12s", row.keys)))
			b.WriteString(theme.Value.Render(row.desc))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(theme.Hint.MarginTop(2).Render("Press Esc to return to menu"))
	b.WriteString("\n")

	return b.String()
}

// navigateUp and navigateDown wrap around the menu
func (m Model) navigateUp() Model {
	n := len(DefaultMenuItems())
	m.selection = (m.selection - 1 + n) % n
	return m
}

func (m Model) navigateDown() Model {
	m.selection = (m.selection + 1) % len(DefaultMenuItems())
	return m
}

func (m Model) selectMenuItem() Model {
	items := DefaultMenuItems()
	if m.selection < 0 || m.selection >= len(items) {
		return m
	}
	return m.open(items[m.selection].Screen)
}

func (m Model) selectMenuByKey(key string) Model {
	for i, item := range DefaultMenuItems() {
		if item.Key == key {
			m.selection = i
			return m.open(item.Screen)
		}
	}
	return m
}

func (m Model) returnToMenu() Model {
	return m.open(ScreenMenu)
}

// open switches screens; errors belong to the screen that raised them
func (m Model) open(screen Screen) Model {
	m.currentScreen = screen
	m.lastError = ""
	return m
}
