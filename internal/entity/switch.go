package entity

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/tuyalocal/internal/device"
	"github.com/muurk/tuyalocal/internal/logging"
	"github.com/muurk/tuyalocal/internal/protocol"
)

// Fog levels reported by humidifiers on dps 6
const (
	FogOff    = "off"
	FogLow    = "low"
	FogMedium = "medium"
	FogHigh   = "high"
)

// Switch data points
const (
	dpsSwitchPower = "1"
	dpsFogLevel    = "6"
	dpsLEDLights   = "11"
	// diffuser mist mode, or humidifier water-low flag
	dpsExtra = "101"
)

// Switch is a plug, diffuser or humidifier
type Switch struct {
	dev  Device
	name string
	kind Kind

	mu        sync.RWMutex
	on        bool
	mistMode  device.MistMode
	fogLevel  string
	ledLights bool
	waterLow  bool
	updated   time.Time
	listener  func(Snapshot)
}

// NewSwitch wraps a device session
func NewSwitch(dev Device, name string, kind Kind) *Switch {
	return &Switch{
		dev:       dev,
		name:      name,
		kind:      kind,
		mistMode:  device.MistOff,
		fogLevel:  FogLow,
		ledLights: true,
	}
}

func (s *Switch) ID() string   { return s.dev.ID() }
func (s *Switch) Name() string { return s.name }
func (s *Switch) Kind() Kind   { return s.kind }

// Start subscribes to status updates
func (s *Switch) Start() error {
	return s.dev.Subscribe(s.HandleStatus)
}

// Update requests a status refresh
func (s *Switch) Update() error {
	return s.dev.QueryStatus()
}

// Close closes the underlying session
func (s *Switch) Close() error {
	return s.dev.Close()
}

// TurnOn switches output 1 on
func (s *Switch) TurnOn() error {
	return s.dev.SetPower(true, 1)
}

// TurnOff switches output 1 off
func (s *Switch) TurnOff() error {
	return s.dev.SetPower(false, 1)
}

// SetMistMode sets the diffuser mist mode; the device also turns on
func (s *Switch) SetMistMode(mode device.MistMode) error {
	return s.dev.SetMistMode(mode, 1)
}

// SetTimer sets the device countdown timer in seconds
func (s *Switch) SetTimer(seconds int) error {
	return s.dev.SetTimer(seconds)
}

// OnChange registers the change listener
func (s *Switch) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

// HandleStatus applies a received status. Statuses without dps are ignored.
func (s *Switch) HandleStatus(st protocol.Status) {
	dps := st.DPS()
	if dps == nil {
		return
	}

	s.mu.Lock()
	if on, ok := asBool(dps[dpsSwitchPower]); ok {
		s.on = on
	}

	switch s.kind {
	case KindDiffuser:
		if v, ok := dps[dpsExtra]; ok {
			switch asString(v) {
			case "1":
				s.mistMode = device.MistContinuous
			case "2":
				s.mistMode = device.MistIntermittent
			default:
				s.mistMode = device.MistOff
			}
		}
	case KindHumidifier:
		if v, ok := dps[dpsFogLevel]; ok {
			switch asString(v) {
			case "0":
				s.fogLevel = FogOff
			case "1":
				s.fogLevel = FogLow
			case "2":
				s.fogLevel = FogMedium
			default:
				s.fogLevel = FogHigh
			}
		}
		if led, ok := asBool(dps[dpsLEDLights]); ok {
			s.ledLights = led
		}
		if low, ok := asBool(dps[dpsExtra]); ok {
			s.waterLow = low
		}
	}
	s.updated = time.Now()
	fn := s.listener
	s.mu.Unlock()

	logging.Debug("Switch state updated", zap.String("device_id", s.ID()), zap.String("kind", string(s.kind)))

	if fn != nil {
		fn(s.Snapshot())
	}
}

// IsOn reports the power state
func (s *Switch) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.on
}

// MistMode reports the diffuser mist mode
func (s *Switch) MistMode() device.MistMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mistMode
}

// FogLevel reports the humidifier fog level
func (s *Switch) FogLevel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fogLevel
}

// Attributes returns the kind-specific state attributes
func (s *Switch) Attributes() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attributesLocked()
}

func (s *Switch) attributesLocked() map[string]any {
	attr := map[string]any{}
	switch s.kind {
	case KindDiffuser:
		attr["mistmode"] = string(s.mistMode)
	case KindHumidifier:
		attr["foglevel"] = s.fogLevel
		attr["led_lights"] = s.ledLights
		attr["water_low"] = s.waterLow
	}
	return attr
}

// Snapshot returns the current state
func (s *Switch) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:         s.ID(),
		UniqueID:   UniqueID(s.ID()),
		Name:       s.name,
		Kind:       s.kind,
		On:         s.on,
		Attributes: s.attributesLocked(),
		UpdatedAt:  s.updated,
	}
}
