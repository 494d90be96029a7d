package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/muurk/tuyalocal/internal/device"
	"github.com/muurk/tuyalocal/internal/protocol"
)

// Kind is the configured device type
type Kind string

const (
	KindSwitch     Kind = "switch"
	KindDiffuser   Kind = "diffuser"
	KindHumidifier Kind = "humidifier"
	KindDimmer     Kind = "dimmer"
	KindBulb       Kind = "bulb"
)

// Kinds lists every supported device type
var Kinds = []Kind{KindSwitch, KindDiffuser, KindHumidifier, KindDimmer, KindBulb}

// ParseKind validates a device type name. Empty means switch.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindSwitch, nil
	}
	k := Kind(strings.ToLower(s))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown device type %q (want one of switch, diffuser, humidifier, dimmer, bulb)", s)
}

// IsLight reports whether the kind is driven as a light
func (k Kind) IsLight() bool {
	return k == KindDimmer || k == KindBulb
}

// Device is the part of a device session a switch entity uses
type Device interface {
	ID() string
	Subscribe(cb func(protocol.Status)) error
	QueryStatus() error
	SetPower(on bool, index int) error
	SetMistMode(mode device.MistMode, index int) error
	SetTimer(seconds int) error
	Close() error
}

// BulbDevice adds the light commands
type BulbDevice interface {
	Device
	SetBrightness(brightness int) error
	SetWhite(brightness, colorTemp int) error
	SetColor(r, g, b, brightness int) error
}

// Snapshot is a point-in-time view of an entity
type Snapshot struct {
	ID         string         `json:"id"`
	UniqueID   string         `json:"unique_id"`
	Name       string         `json:"name"`
	Kind       Kind           `json:"kind"`
	On         bool           `json:"on"`
	Attributes map[string]any `json:"attributes,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
}

// Entity maps device data points to user-facing state
type Entity interface {
	ID() string
	Name() string
	Kind() Kind

	// Start subscribes to the device
	Start() error
	// Update requests a fresh status; the result arrives asynchronously
	Update() error
	TurnOn() error
	TurnOff() error

	Snapshot() Snapshot
	// OnChange registers a listener called after every applied status
	OnChange(fn func(Snapshot))
	Close() error
}

// New creates the session and entity for a configured device
func New(kind Kind, name string, cfg device.Config) (Entity, error) {
	if kind.IsLight() {
		b, err := device.NewBulb(cfg)
		if err != nil {
			return nil, err
		}
		return NewLight(b, name, kind), nil
	}
	s, err := device.New(cfg)
	if err != nil {
		return nil, err
	}
	return NewSwitch(s, name, kind), nil
}

// UniqueID returns the stable identifier used for an entity
func UniqueID(deviceID string) string {
	return "tuya_" + deviceID
}

// dps value helpers; JSON numbers arrive as float64

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		var i int
		if _, err := fmt.Sscan(n, &i); err == nil {
			return i, true
		}
	}
	return 0, false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
