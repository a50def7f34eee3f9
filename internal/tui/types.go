package tui

import "time"

// Screen represents different TUI screens
type Screen string

const (
	// ScreenMenu is the main menu screen
	ScreenMenu Screen = "menu"
	// ScreenStatus shows the idle state machine
	ScreenStatus Screen = "status"
	// ScreenPlans shows recent suspend plans
	ScreenPlans Screen = "plans"
	// ScreenHelp shows help overlay
	ScreenHelp Screen = "help"
)

// MenuItem represents a menu item
type MenuItem struct {
	Key         string // Number key or letter
	Label       string // Display label
	Description string // Short description
	Screen      Screen // Target screen
}

// UIState represents the persisted UI state
type UIState struct {
	CurrentScreen Screen    `json:"menu"`
	Selection     int       `json:"selection"`
	LastError     string    `json:"last_error"`
	Updated       time.Time `json:"updated"`
}

// DefaultMenuItems returns the default main menu items
func DefaultMenuItems() []MenuItem {
	return []MenuItem{
		{Key: "1", Label: "Status", Description: "Idle timer, CPU window and guards", Screen: ScreenStatus},
		{Key: "2", Label: "Suspend plans", Description: "Recent plans and unit outcomes", Screen: ScreenPlans},
		{Key: "?", Label: "Help", Description: "Show help", Screen: ScreenHelp},
	}
}
