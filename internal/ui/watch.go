package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/tuyalocal/internal/bridge"
	"github.com/muurk/tuyalocal/internal/entity"
)

// brightnessStep is how much +/- change a light's brightness
const brightnessStep = 25

// Controller is the part of a hub the watch view drives
type Controller interface {
	Snapshots() []entity.Snapshot
	Subscribe() (<-chan entity.Snapshot, func())
	Execute(cmd bridge.Command) (bridge.Result, error)
}

// Messages for async operations
type stateMsg struct{ snap entity.Snapshot }
type hubClosedMsg struct{}
type commandDoneMsg struct {
	res bridge.Result
	err error
}

// watchKeyMap defines key bindings for the watch screen
type watchKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Toggle   key.Binding
	Brighter key.Binding
	Dimmer   key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Brighter, k.Dimmer, k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle},
		{k.Brighter, k.Dimmer, k.Refresh, k.Quit},
	}
}

func newWatchKeyMap() watchKeyMap {
	return watchKeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle:   key.NewBinding(key.WithKeys("enter", " ", "t"), key.WithHelp("enter", "toggle")),
		Brighter: key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "brighter")),
		Dimmer:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "dimmer")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// WatchModel is a live dashboard of every device with basic controls
type WatchModel struct {
	ctl         Controller
	events      <-chan entity.Snapshot
	unsubscribe func()

	Devices []entity.Snapshot
	Cursor  int
	Status  string
	Pending bool

	Width   int
	spinner spinner.Model
	help    help.Model
	keys    watchKeyMap
}

// NewWatchModel subscribes to ctl and lists its devices
func NewWatchModel(ctl Controller) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	events, unsubscribe := ctl.Subscribe()
	return WatchModel{
		ctl:         ctl,
		events:      events,
		unsubscribe: unsubscribe,
		Devices:     ctl.Snapshots(),
		Width:       GetTerminalWidth(),
		spinner:     s,
		help:        help.New(),
		keys:        newWatchKeyMap(),
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.events))
}

// waitForState delivers the next state change as a message
func waitForState(events <-chan entity.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-events
		if !ok {
			return hubClosedMsg{}
		}
		return stateMsg{snap: snap}
	}
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		m.applyState(msg.snap)
		return m, waitForState(m.events)

	case hubClosedMsg:
		m.Status = "bridge stopped"
		return m, tea.Quit

	case commandDoneMsg:
		m.Pending = false
		if msg.err != nil {
			m.Status = fmt.Sprintf("%s %s: %s", FailureMarker, msg.res.Action, msg.res.Error)
		} else {
			m.Status = fmt.Sprintf("%s %s sent", SuccessMarker, msg.res.Action)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.Cursor < len(m.Devices)-1 {
			m.Cursor++
		}
	}

	sel, ok := m.Selected()
	if !ok {
		return m, nil
	}

	var cmd *bridge.Command
	switch {
	case key.Matches(msg, m.keys.Toggle):
		action := bridge.ActionOn
		if sel.On {
			action = bridge.ActionOff
		}
		cmd = &bridge.Command{Device: sel.ID, Action: action}
	case key.Matches(msg, m.keys.Brighter), key.Matches(msg, m.keys.Dimmer):
		if !sel.Kind.IsLight() {
			m.Status = "brightness only applies to lights"
			return m, nil
		}
		step := brightnessStep
		if key.Matches(msg, m.keys.Dimmer) {
			step = -step
		}
		b := currentBrightness(sel) + step
		cmd = &bridge.Command{Device: sel.ID, Action: bridge.ActionBrightness, Params: bridge.Params{Brightness: &b}}
	case key.Matches(msg, m.keys.Refresh):
		cmd = &bridge.Command{Device: sel.ID, Action: bridge.ActionStatus}
	}
	if cmd == nil {
		return m, nil
	}

	m.Pending = true
	m.Status = fmt.Sprintf("sending %s to %s...", cmd.Action, sel.Name)
	return m, m.execute(*cmd)
}

func (m WatchModel) execute(cmd bridge.Command) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		res, err := ctl.Execute(cmd)
		return commandDoneMsg{res: res, err: err}
	}
}

// applyState replaces or inserts a device, keeping the list sorted by id
func (m *WatchModel) applyState(snap entity.Snapshot) {
	for i := range m.Devices {
		if m.Devices[i].ID == snap.ID {
			m.Devices[i] = snap
			return
		}
	}
	m.Devices = append(m.Devices, snap)
	sort.Slice(m.Devices, func(i, j int) bool { return m.Devices[i].ID < m.Devices[j].ID })
}

// Selected returns the device under the cursor
func (m WatchModel) Selected() (entity.Snapshot, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.Devices) {
		return entity.Snapshot{}, false
	}
	return m.Devices[m.Cursor], true
}

func currentBrightness(s entity.Snapshot) int {
	switch b := s.Attributes["brightness"].(type) {
	case int:
		return b
	case float64:
		return int(b)
	}
	return 0
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(HeaderTitleStyle.Render("TUYALOCAL WATCH"))
	b.WriteString("\n")
	b.WriteString(RenderHorizontalDivider(max(m.Width-4, 10), "─"))
	b.WriteString("\n")

	if len(m.Devices) == 0 {
		b.WriteString(MutedStyle.Render("  No devices configured."))
		b.WriteString("\n")
	}
	for i, d := range m.Devices {
		b.WriteString(RenderDeviceRow(d, i == m.Cursor))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.Pending {
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(m.Status)
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// RunWatch runs the watch view until the user quits
func RunWatch(ctl Controller) error {
	_, err := tea.NewProgram(NewWatchModel(ctl), tea.WithAltScreen()).Run()
	return err
}
