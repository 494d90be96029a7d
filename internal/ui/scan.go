package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/tuyalocal/internal/discovery"
)

// ScanFunc runs a discovery scan, calling found for each new device
type ScanFunc func(found func(*discovery.Device)) ([]*discovery.Device, error)

type deviceFoundMsg struct{ device *discovery.Device }
type scanDoneMsg struct {
	devices []*discovery.Device
	err     error
}
type scanTickMsg time.Time

// ScanModel shows a running LAN scan with a countdown bar and the devices found so far
type ScanModel struct {
	scan    ScanFunc
	timeout time.Duration
	started time.Time
	found   chan *discovery.Device

	// Known marks ids already in the registry
	Known   map[string]bool
	Devices []*discovery.Device
	Done    bool
	Err     error

	spinner spinner.Model
	bar     progress.Model
	percent float64
}

// NewScanModel creates a scan view. timeout only drives the progress bar;
// the scan itself ends when scan returns.
func NewScanModel(scan ScanFunc, timeout time.Duration, known map[string]bool) ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	return ScanModel{
		scan:    scan,
		timeout: timeout,
		found:   make(chan *discovery.Device, 16),
		Known:   known,
		spinner: s,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
	}
}

// Init implements tea.Model
func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run(), waitForDevice(m.found), scanTick())
}

func (m ScanModel) run() tea.Cmd {
	scan, found := m.scan, m.found
	return func() tea.Msg {
		devices, err := scan(func(d *discovery.Device) {
			// Live updates are best effort; the final list arrives with scanDoneMsg
			select {
			case found <- d:
			default:
			}
		})
		close(found)
		return scanDoneMsg{devices: devices, err: err}
	}
}

func waitForDevice(found <-chan *discovery.Device) tea.Cmd {
	return func() tea.Msg {
		d, ok := <-found
		if !ok {
			return nil
		}
		return deviceFoundMsg{device: d}
	}
}

func scanTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return scanTickMsg(t) })
}

// Update implements tea.Model
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.Done = true
			return m, tea.Quit
		}

	case deviceFoundMsg:
		m.Devices = append(m.Devices, msg.device)
		return m, waitForDevice(m.found)

	case scanDoneMsg:
		m.Done = true
		m.Err = msg.err
		if msg.err == nil {
			m.Devices = msg.devices
		}
		m.percent = 1
		return m, tea.Quit

	case scanTickMsg:
		if m.started.IsZero() {
			m.started = time.Time(msg)
		}
		if m.timeout > 0 {
			m.percent = min(float64(time.Time(msg).Sub(m.started))/float64(m.timeout), 1)
		}
		return m, scanTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m ScanModel) View() string {
	var b strings.Builder

	if m.Done {
		b.WriteString(HeaderTitleStyle.Render(fmt.Sprintf("Scan finished: %d device(s)", len(m.Devices))))
	} else {
		b.WriteString(fmt.Sprintf("  %s Listening for device announcements on UDP 6666...", m.spinner.View()))
	}
	b.WriteString("\n  ")
	b.WriteString(m.bar.ViewAs(m.percent))
	b.WriteString("\n\n")

	for _, d := range m.Devices {
		b.WriteString(RenderDiscoveredDevice(d, m.Known[d.ID]))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDiscoveredDevice renders one scan result line
func RenderDiscoveredDevice(d *discovery.Device, known bool) string {
	line := fmt.Sprintf("  %s %s  %s",
		DeviceNameStyle.Render(d.ID),
		fmt.Sprintf("%-15s", d.IP),
		MutedStyle.Render("v"+d.Version),
	)
	if !d.Supported() {
		line += " " + lipgloss.NewStyle().Foreground(WarningColor).Render("(unsupported protocol version)")
	}
	if known {
		line += " " + StateOnStyle.Render("(configured)")
	}
	return line
}

// RunScan runs the scan view and returns the devices found
func RunScan(scan ScanFunc, timeout time.Duration, known map[string]bool) ([]*discovery.Device, error) {
	final, err := tea.NewProgram(NewScanModel(scan, timeout, known)).Run()
	if err != nil {
		return nil, err
	}
	m := final.(ScanModel)
	return m.Devices, m.Err
}
