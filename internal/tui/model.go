// Package tui renders the daemon's persisted state for `idlepower watch`.
// It never talks to the daemon directly; it re-reads the state files.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"idlepower/internal/idle"
	"idlepower/internal/logging"
	"idlepower/internal/suspend"
)

// DefaultRefreshInterval is how often the state files are re-read
const DefaultRefreshInterval = 2 * time.Second

// historyLimit is how many plans the plans screen shows
const historyLimit = 8

// Switch is the persisted auto-suspend toggle
type Switch interface {
	Enabled() (bool, error)
	Enable() error
	Disable() error
}

// Sources tells the model where the daemon keeps its state
type Sources struct {
	StateFile   string
	HistoryFile string
	StateDir    string
	Switch      Switch
	Refresh     time.Duration
}

type refreshMsg time.Time

// Model represents the TUI application state
type Model struct {
	startTime time.Time
	quitting  bool

	logger  *logging.Logger
	sources Sources
	now     func() time.Time

	// UI State
	currentScreen Screen
	selection     int
	lastError     string
	stateManager  *UIStateManager

	// Daemon State
	snapshot    idle.Snapshot
	hasSnapshot bool
	idleError   string

	plans      []suspend.Plan
	plansError string

	suspendEnabled bool
	switchError    string
	statusMessage  string
}

// NewModel creates a new TUI model with the current daemon state loaded
func NewModel(logger *logging.Logger, sources Sources) Model {
	if sources.Refresh <= 0 {
		sources.Refresh = DefaultRefreshInterval
	}

	m := Model{
		startTime:     time.Now(),
		logger:        logger,
		sources:       sources,
		now:           time.Now,
		currentScreen: ScreenStatus,
		stateManager:  NewUIStateManager(sources.StateDir, logger),
	}

	if state, err := m.stateManager.Load(); err == nil {
		m.currentScreen = state.CurrentScreen
		m.selection = state.Selection
		m.lastError = state.LastError
	}

	return m.refresh()
}

// Init schedules the first refresh
func (m Model) Init() tea.Cmd {
	return m.scheduleRefresh()
}

func (m Model) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.sources.Refresh, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		return m.refresh(), m.scheduleRefresh()
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", "q":
		m.quitting = true
		m.saveState()
		return m, tea.Quit
	case "esc":
		if m.currentScreen != ScreenMenu {
			m = m.returnToMenu()
			m.saveState()
		}
		return m, nil
	case "1", "2", "?":
		m = m.selectMenuByKey(key)
		m.saveState()
		return m, nil
	case "r":
		m = m.refresh()
		m.statusMessage = "Refreshed"
		return m, nil
	case "t":
		return m.toggleSuspend(), nil
	}

	if m.currentScreen == ScreenMenu {
		switch key {
		case "up", "k":
			return m.navigateUp(), nil
		case "down", "j":
			return m.navigateDown(), nil
		case "enter", " ":
			m = m.selectMenuItem()
			m.saveState()
			return m, nil
		}
	}
	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.currentScreen {
	case ScreenMenu:
		return m.renderMenu()
	case ScreenStatus:
		return m.renderStatusScreen()
	case ScreenPlans:
		return m.renderPlansScreen()
	case ScreenHelp:
		return m.renderHelpScreen()
	default:
		return m.renderStatusScreen()
	}
}

// saveState persists the current UI state
func (m *Model) saveState() {
	state := &UIState{
		CurrentScreen: m.currentScreen,
		Selection:     m.selection,
		LastError:     m.lastError,
	}

	if err := m.stateManager.Save(state); err != nil {
		m.logger.Warn("tui.state.save_failed", "Failed to save UI state", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// refresh re-reads every state file
func (m Model) refresh() Model {
	m.loadSnapshot()
	m.loadPlans()
	m.loadSwitch()
	return m
}

func (m *Model) loadSnapshot() {
	if m.sources.StateFile == "" {
		m.hasSnapshot = false
		m.idleError = "No state file configured"
		return
	}

	snap, err := idle.NewStateManager(m.sources.StateFile, m.logger).Load()
	if err != nil {
		m.hasSnapshot = false
		m.idleError = fmt.Sprintf("Daemon state unavailable: %v", err)
		return
	}
	m.snapshot = snap
	m.hasSnapshot = true
	m.idleError = ""
}

func (m *Model) loadPlans() {
	if m.sources.HistoryFile == "" {
		m.plans = nil
		return
	}
	plans, err := suspend.ReadHistory(m.sources.HistoryFile, historyLimit)
	if err != nil {
		m.plansError = err.Error()
		return
	}
	m.plans = plans
	m.plansError = ""
}

func (m *Model) loadSwitch() {
	if m.sources.Switch == nil {
		m.switchError = "unknown"
		return
	}
	enabled, err := m.sources.Switch.Enabled()
	if err != nil {
		m.switchError = err.Error()
		return
	}
	m.suspendEnabled = enabled
	m.switchError = ""
}

// toggleSuspend flips the auto-suspend switch
func (m Model) toggleSuspend() Model {
	if m.sources.Switch == nil {
		m.lastError = "Auto-suspend switch unavailable"
		return m
	}

	var err error
	if m.suspendEnabled {
		err = m.sources.Switch.Disable()
	} else {
		err = m.sources.Switch.Enable()
	}
	if err != nil {
		m.lastError = fmt.Sprintf("Failed to toggle auto-suspend: %v", err)
		return m
	}

	m.loadSwitch()
	if m.suspendEnabled {
		m.statusMessage = "Auto-suspend enabled"
	} else {
		m.statusMessage = "Auto-suspend disabled"
	}
	m.lastError = ""
	return m
}

// renderStatusScreen renders the idle state machine
func (m Model) renderStatusScreen() string {
	var b strings.Builder


	b.WriteString(theme.Title.Render("idlepower Status"))
	b.WriteString("\n\n")

	b.WriteString(theme.Section.Render("Idle Timer"))
	b.WriteString("\n")
	b.WriteString(m.renderIdleSection())

	b.WriteString(theme.Section.Render("CPU Window"))
	b.WriteString("\n")
	b.WriteString(m.renderCPUSection())

	b.WriteString(theme.Section.Render("Auto-suspend"))
	b.WriteString("\n")
	b.WriteString(m.renderSwitchSection())

	if m.statusMessage != "" {
		b.WriteString("\n")
		b.WriteString(theme.Value.Render(m.statusMessage))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(theme.Error.Render(m.lastError))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(theme.Hint.Render("Press 't' to toggle auto-suspend, 'r' to refresh, Esc for menu, 'q' to quit"))
	b.WriteString("\n")

	return b.String()
}

// renderIdleSection renders the idle section
func (m Model) renderIdleSection() string {
	if m.idleError != "" {
		return theme.Error.Render(m.idleError) + "\n"
	}
	if !m.hasSnapshot {
		return theme.Value.Render("Waiting for daemon state") + "\n"
	}

	snap := m.snapshot
	phaseStyle := theme.Value
	if snap.Phase == idle.PhaseIdle {
		phaseStyle = theme.Idle
	}

	var b strings.Builder
	b.WriteString(theme.Label.Render("Phase: "))
	b.WriteString(phaseStyle.Render(string(snap.Phase)))
	b.WriteString("  ")
	b.WriteString(theme.Label.Render("Idle for: "))
	b.WriteString(theme.Value.Render(m.prettyDuration(time.Duration(snap.IdleForSeconds) * time.Second)))
	b.WriteString(theme.Value.Render(" / " + m.prettyDuration(time.Duration(snap.ThresholdSeconds)*time.Second)))
	b.WriteString("\n")

	b.WriteString(theme.Label.Render("Last activity: "))
	b.WriteString(theme.Value.Render(m.ago(snap.LastActivityAt)))
	b.WriteString("\n")

	if snap.HoldUntil != nil && snap.HoldUntil.After(m.now()) {
		b.WriteString(theme.Label.Render("Resume grace until: "))
		b.WriteString(theme.Value.Render(snap.HoldUntil.Local().Format("15:04:05")))
		b.WriteString("\n")
	}

	if len(snap.GatingReasons) > 0 {
		b.WriteString(theme.Label.Render("Gating: "))
		b.WriteString(theme.Value.Render(strings.Join(snap.GatingReasons, ", ")))
		b.WriteString("\n")
	}
	if snap.GuardReason != "" {
		b.WriteString(theme.Label.Render("Guard: "))
		b.WriteString(theme.Value.Render(snap.GuardReason))
		b.WriteString("\n")
	}
	if snap.PlanInProgress {
		b.WriteString(theme.Label.Render("Suspend plan: "))
		b.WriteString(theme.Value.Render("in progress"))
		b.WriteString("\n")
	}

	b.WriteString(theme.Label.Render("Updated: "))
	b.WriteString(theme.Value.Render(m.ago(snap.UpdatedAt)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderCPUSection() string {
	if !m.hasSnapshot || !m.snapshot.CPUEnabled {
		return theme.Value.Render("CPU monitoring disabled") + "\n"
	}

	var b strings.Builder
	b.WriteString(theme.Label.Render("Window mean: "))
	if m.snapshot.CPUMeanPct == nil {
		b.WriteString(theme.Value.Render("warming up"))
	} else {
		b.WriteString(theme.Value.Render(fmt.Sprintf("%.1f%%", *m.snapshot.CPUMeanPct)))
	}
	b.WriteString("  ")
	b.WriteString(theme.Label.Render("Threshold: "))
	b.WriteString(theme.Value.Render(fmt.Sprintf("%.0f%%", m.snapshot.CPUThresholdPct)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderSwitchSection() string {
	if m.switchError != "" {
		return theme.Error.Render("Switch state: "+m.switchError) + "\n"
	}
	state := "disabled"
	if m.suspendEnabled {
		state = "enabled"
	}
	return theme.Label.Render("State: ") + theme.Value.Render(capitalize(state)) + "\n"
}

// renderPlansScreen renders the most recent suspend plans
func (m Model) renderPlansScreen() string {
	var b strings.Builder


	b.WriteString(theme.Title.Render("Suspend Plans"))
	b.WriteString("\n\n")

	switch {
	case m.plansError != "":
		b.WriteString(theme.Error.Render(m.plansError))
		b.WriteString("\n")
	case len(m.plans) == 0:
		b.WriteString(theme.Value.Render("No suspend plans recorded yet"))
		b.WriteString("\n")
	}

	for i := len(m.plans) - 1; i >= 0; i-- {
		p := m.plans[i]
		outcomeStyle := theme.OK
		if p.Outcome != suspend.OutcomeCompleted {
			outcomeStyle = theme.Error
		}

		b.WriteString(theme.Label.Render(p.CreatedAt.Local().Format("2006-01-02 15:04:05")))
		b.WriteString(" ")
		b.WriteString(outcomeStyle.Render(capitalize(p.Outcome)))
		b.WriteString("\n")

		for _, u := range p.Units {
			line := fmt.Sprintf("  %-4s %-8s %s", u.Kind, u.ID, u.Status)
			switch u.Status {
			case suspend.StatusConfirmed:
				b.WriteString(theme.OK.Render(line))
			case suspend.StatusFailed:
				b.WriteString(theme.Error.Render(line))
			default:
				b.WriteString(theme.Muted.Render(line))
			}
			if u.Error != "" {
				b.WriteString(theme.Muted.Render("  " + u.Error))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(theme.Hint.Render("Press 'r' to refresh, Esc for menu, 'q' to quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return m.prettyDuration(m.now().Sub(t)) + " ago"
}

// prettyDuration formats a duration for display
func (m Model) prettyDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	return d.Truncate(time.Second).String()
}

// capitalize capitalizes the first letter of a string
func capitalize(input string) string {
	if input == "" {
		return ""
	}
	return strings.ToUpper(input[:1]) + input[1:]
}
