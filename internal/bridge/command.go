package bridge

import (
	"errors"
	"fmt"

	"github.com/muurk/tuyalocal/internal/device"
	"github.com/muurk/tuyalocal/internal/entity"
)

// Action names a command a client can send
type Action string

const (
	ActionOn         Action = "on"
	ActionOff        Action = "off"
	ActionBrightness Action = "brightness"
	ActionColor      Action = "color"
	ActionWhite      Action = "white"
	ActionTimer      Action = "timer"
	ActionMist       Action = "mist"
	ActionStatus     Action = "status"
)

var (
	// ErrUnknownDevice is returned when a command names no registered device
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnsupported is returned when the device kind cannot perform the action
	ErrUnsupported = errors.New("action not supported by device")
)

// Params carries the optional action arguments
type Params struct {
	Brightness *int     `json:"brightness,omitempty"`
	Hue        *float64 `json:"hue,omitempty"`
	Saturation *float64 `json:"saturation,omitempty"`
	// ColorTemp in mireds
	ColorTemp *int   `json:"color_temp,omitempty"`
	Seconds   *int   `json:"seconds,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// Command asks the hub to act on one device
type Command struct {
	// ID is echoed in the result so clients can correlate replies
	ID     string `json:"id,omitempty"`
	Device string `json:"device"`
	Action Action `json:"action"`
	Params Params `json:"params,omitempty"`
}

// Result reports the outcome of a command. State is the entity snapshot
// at the time the command was sent; the device's reply arrives later as
// a state event.
type Result struct {
	ID     string           `json:"id,omitempty"`
	Device string           `json:"device"`
	Action Action           `json:"action"`
	OK     bool             `json:"ok"`
	Error  string           `json:"error,omitempty"`
	State  *entity.Snapshot `json:"state,omitempty"`
}

type timer interface {
	SetTimer(seconds int) error
}

type mister interface {
	SetMistMode(mode device.MistMode) error
}

// apply runs cmd against e
func apply(e entity.Entity, cmd Command) error {
	p := cmd.Params

	switch cmd.Action {
	case ActionOn:
		if l, ok := e.(*entity.Light); ok && p.Brightness != nil {
			return l.TurnOnWith(entity.LightOptions{Brightness: p.Brightness})
		}
		return e.TurnOn()

	case ActionOff:
		return e.TurnOff()

	case ActionStatus:
		return e.Update()

	case ActionBrightness:
		l, ok := e.(*entity.Light)
		if !ok {
			return fmt.Errorf("%w: %s on %s", ErrUnsupported, cmd.Action, e.Kind())
		}
		if p.Brightness == nil {
			return device.NewValidationError("brightness is required")
		}
		return l.TurnOnWith(entity.LightOptions{Brightness: p.Brightness})

	case ActionColor:
		l, ok := e.(*entity.Light)
		if !ok || !l.SupportsColor() {
			return fmt.Errorf("%w: %s on %s", ErrUnsupported, cmd.Action, e.Kind())
		}
		if p.Hue == nil || p.Saturation == nil {
			return device.NewValidationError("hue and saturation are required")
		}
		return l.TurnOnWith(entity.LightOptions{
			Brightness: p.Brightness,
			Color:      &entity.HSColor{Hue: *p.Hue, Saturation: *p.Saturation},
		})

	case ActionWhite:
		l, ok := e.(*entity.Light)
		if !ok || !l.SupportsColor() {
			return fmt.Errorf("%w: %s on %s", ErrUnsupported, cmd.Action, e.Kind())
		}
		if p.ColorTemp == nil {
			return device.NewValidationError("color_temp is required")
		}
		return l.TurnOnWith(entity.LightOptions{Brightness: p.Brightness, ColorTemp: p.ColorTemp})

	case ActionTimer:
		t, ok := e.(timer)
		if !ok {
			return fmt.Errorf("%w: %s on %s", ErrUnsupported, cmd.Action, e.Kind())
		}
		if p.Seconds == nil || *p.Seconds < 0 {
			return device.NewValidationError("seconds must be a non-negative number")
		}
		return t.SetTimer(*p.Seconds)

	case ActionMist:
		m, ok := e.(mister)
		if !ok || e.Kind() != entity.KindDiffuser {
			return fmt.Errorf("%w: %s on %s", ErrUnsupported, cmd.Action, e.Kind())
		}
		mode := device.MistContinuous
		if p.Mode != "" {
			mode = device.ParseMistMode(p.Mode)
			if mode == device.MistOff && p.Mode != string(device.MistOff) {
				return device.NewValidationError("unknown mist mode %q", p.Mode)
			}
		}
		return m.SetMistMode(mode)

	default:
		return device.NewValidationError("unknown action %q", cmd.Action)
	}
}
