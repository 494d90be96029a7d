package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/tuyalocal/internal/bridge"
	"github.com/muurk/tuyalocal/internal/discovery"
	"github.com/muurk/tuyalocal/internal/entity"
)

type fakeController struct {
	snaps    []entity.Snapshot
	events   chan entity.Snapshot
	commands []bridge.Command
}

func (f *fakeController) Snapshots() []entity.Snapshot { return f.snaps }
func (f *fakeController) Subscribe() (<-chan entity.Snapshot, func()) {
	return f.events, func() {}
}
func (f *fakeController) Execute(cmd bridge.Command) (bridge.Result, error) {
	f.commands = append(f.commands, cmd)
	return bridge.Result{Device: cmd.Device, Action: cmd.Action, OK: true}, nil
}

func newFakeController() *fakeController {
	return &fakeController{
		snaps: []entity.Snapshot{
			{ID: "lamp", Name: "Lamp", Kind: entity.KindBulb, On: true, Attributes: map[string]any{"brightness": 100}},
			{ID: "plug", Name: "Plug", Kind: entity.KindSwitch},
		},
		events: make(chan entity.Snapshot, 4),
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting command, feeding its message back
func press(t *testing.T, m WatchModel, msg tea.KeyMsg) WatchModel {
	t.Helper()
	updated, cmd := m.Update(msg)
	m = updated.(WatchModel)
	if cmd != nil {
		if done, ok := cmd().(commandDoneMsg); ok {
			updated, _ = m.Update(done)
			m = updated.(WatchModel)
		}
	}
	return m
}

func TestWatchNavigationAndCommands(t *testing.T) {
	ctl := newFakeController()
	m := NewWatchModel(ctl)

	// Toggle the lamp, which is on
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(ctl.commands) != 1 || ctl.commands[0].Action != bridge.ActionOff || ctl.commands[0].Device != "lamp" {
		t.Fatalf("commands = %+v", ctl.commands)
	}
	if m.Pending || !strings.Contains(m.Status, "off sent") {
		t.Errorf("status = %q, pending = %v", m.Status, m.Pending)
	}

	m = press(t, m, runes("+"))
	last := ctl.commands[len(ctl.commands)-1]
	if last.Action != bridge.ActionBrightness || last.Params.Brightness == nil || *last.Params.Brightness != 125 {
		t.Errorf("brighter command = %+v", last)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.Cursor != 1 {
		t.Errorf("Cursor = %d, want 1 (clamped)", m.Cursor)
	}

	n := len(ctl.commands)
	m = press(t, m, runes("-"))
	if len(ctl.commands) != n || !strings.Contains(m.Status, "only applies to lights") {
		t.Errorf("dimmer on a plug should not send; status = %q", m.Status)
	}

	m = press(t, m, runes("t"))
	if last := ctl.commands[len(ctl.commands)-1]; last.Action != bridge.ActionOn || last.Device != "plug" {
		t.Errorf("toggle plug = %+v", last)
	}

	m = press(t, m, runes("r"))
	if last := ctl.commands[len(ctl.commands)-1]; last.Action != bridge.ActionStatus {
		t.Errorf("refresh = %+v", last)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.Cursor != 0 {
		t.Errorf("Cursor = %d, want 0", m.Cursor)
	}
}

func TestWatchState(t *testing.T) {
	ctl := newFakeController()
	m := NewWatchModel(ctl)

	updated, cmd := m.Update(stateMsg{snap: entity.Snapshot{ID: "plug", Name: "Plug", Kind: entity.KindSwitch, On: true, UpdatedAt: time.Now()}})
	m = updated.(WatchModel)
	if !m.Devices[1].On {
		t.Error("state update not applied")
	}
	if cmd == nil {
		t.Fatal("state update should wait for the next event")
	}

	ctl.events <- entity.Snapshot{ID: "aaa", Name: "New"}
	next := cmd()
	updated, _ = m.Update(next)
	m = updated.(WatchModel)
	if len(m.Devices) != 3 || m.Devices[0].ID != "aaa" {
		t.Errorf("Devices = %+v", m.Devices)
	}

	close(ctl.events)
	if _, ok := waitForState(ctl.events)().(hubClosedMsg); !ok {
		t.Error("closed event channel should produce hubClosedMsg")
	}

	view := m.View()
	for _, want := range []string{"TUYALOCAL WATCH", "Lamp", "Plug", "New", "quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestWatchQuit(t *testing.T) {
	m := NewWatchModel(newFakeController())
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
}

func TestScanModel(t *testing.T) {
	d1 := &discovery.Device{ID: "aa", IP: "10.0.0.2", Version: "3.1"}
	d2 := &discovery.Device{ID: "bb", IP: "10.0.0.3", Version: "3.1"}
	scan := func(found func(*discovery.Device)) ([]*discovery.Device, error) {
		found(d1)
		found(d2)
		return []*discovery.Device{d1, d2}, nil
	}

	m := NewScanModel(scan, time.Second, map[string]bool{"aa": true})
	done := m.run()()

	// run has returned, so both live updates are buffered
	updated, _ := m.Update(waitForDevice(m.found)())
	m = updated.(ScanModel)
	if len(m.Devices) != 1 || m.Devices[0].ID != "aa" {
		t.Errorf("Devices after first found = %+v", m.Devices)
	}

	updated, cmd := m.Update(done)
	m = updated.(ScanModel)
	if !m.Done || len(m.Devices) != 2 || m.Err != nil {
		t.Errorf("after done: Done=%v Devices=%d Err=%v", m.Done, len(m.Devices), m.Err)
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("scan completion should quit")
	}

	view := m.View()
	if !strings.Contains(view, "2 device(s)") || !strings.Contains(view, "configured") {
		t.Errorf("View() =\n%s", view)
	}
}

func TestScanModelProgress(t *testing.T) {
	m := NewScanModel(nil, time.Second, nil)
	start := time.Now()

	updated, _ := m.Update(scanTickMsg(start))
	m = updated.(ScanModel)
	updated, _ = m.Update(scanTickMsg(start.Add(500 * time.Millisecond)))
	m = updated.(ScanModel)
	if m.percent < 0.49 || m.percent > 0.51 {
		t.Errorf("percent = %v, want 0.5", m.percent)
	}
	updated, _ = m.Update(scanTickMsg(start.Add(3 * time.Second)))
	m = updated.(ScanModel)
	if m.percent != 1 {
		t.Errorf("percent = %v, want capped at 1", m.percent)
	}
}

func TestKeyPrompt(t *testing.T) {
	var m tea.Model = NewKeyPromptModel("bf1234567890abcd")

	m, _ = m.Update(runes("0123456789"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("enter with a short key should not quit")
	}
	if !strings.Contains(m.View(), "must be 16 characters") {
		t.Errorf("View() should show the length error:\n%s", m.View())
	}
	if strings.Contains(m.View(), "0123456789") {
		t.Error("View() should not echo the key")
	}

	m, _ = m.Update(runes("abcdef"))
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter with a full key should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("enter with a full key should return tea.Quit")
	}
	if got := m.(KeyPromptModel).Value(); got != "0123456789abcdef" {
		t.Errorf("Value() = %q, want 0123456789abcdef", got)
	}
}

func TestKeyPromptCancel(t *testing.T) {
	var m tea.Model = NewKeyPromptModel("abc")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil || !m.(KeyPromptModel).cancelled {
		t.Error("esc should cancel the prompt")
	}
	if m.View() != "" {
		t.Errorf("View() after cancel = %q, want empty", m.View())
	}
}
