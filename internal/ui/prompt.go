package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/tuyalocal/internal/protocol"
)

// ErrPromptCancelled is returned when the user leaves a prompt without answering
var ErrPromptCancelled = errors.New("prompt cancelled")

// KeyPromptModel asks for a device local key without echoing it
type KeyPromptModel struct {
	deviceID  string
	input     textinput.Model
	err       string
	done      bool
	cancelled bool
}

// NewKeyPromptModel creates the local key prompt for deviceID
func NewKeyPromptModel(deviceID string) KeyPromptModel {
	input := textinput.New()
	input.Placeholder = "16-character local key"
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.CharLimit = protocol.KeySize
	input.Width = 30
	input.Focus()

	return KeyPromptModel{deviceID: deviceID, input: input}
}

func (m KeyPromptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m KeyPromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if n := len(m.input.Value()); n != protocol.KeySize {
				m.err = fmt.Sprintf("local key must be %d characters, got %d", protocol.KeySize, n)
				return m, nil
			}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.err = ""
	return m, cmd
}

func (m KeyPromptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(HeaderTitleStyle.Render("Local key for "+m.deviceID) + "\n\n")
	b.WriteString("  " + m.input.View() + "\n")
	if m.err != "" {
		b.WriteString("  " + ErrorMessageStyle.Render(m.err) + "\n")
	}
	b.WriteString("\n" + MutedStyle.Render("  enter confirm • esc cancel") + "\n")
	return b.String()
}

// Value returns the key entered so far
func (m KeyPromptModel) Value() string {
	return m.input.Value()
}

// PromptLocalKey asks for the local key of deviceID on the terminal
func PromptLocalKey(deviceID string) (string, error) {
	final, err := tea.NewProgram(NewKeyPromptModel(deviceID)).Run()
	if err != nil {
		return "", err
	}
	m := final.(KeyPromptModel)
	if m.cancelled || !m.done {
		return "", ErrPromptCancelled
	}
	return m.Value(), nil
}
