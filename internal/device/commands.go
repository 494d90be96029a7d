package device

import (
	"errors"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/muurk/tuyalocal/internal/logging"
	"github.com/muurk/tuyalocal/internal/protocol"
)

// MistMode is the diffuser mist setting carried on dps 101
type MistMode string

const (
	MistContinuous   MistMode = "continuous"
	MistIntermittent MistMode = "intermittent"
	MistOff          MistMode = "off"
)

// DPS value written to dps 101
func (m MistMode) dpsValue() string {
	switch m {
	case MistContinuous:
		return "1"
	case MistIntermittent:
		return "2"
	default:
		return "3"
	}
}

// ParseMistMode maps a name to a MistMode. Unknown names map to MistOff.
func ParseMistMode(s string) MistMode {
	switch MistMode(s) {
	case MistContinuous, MistIntermittent:
		return MistMode(s)
	default:
		return MistOff
	}
}

const mistModeDPS = "101"

// QueryStatus asks the device for its state. The reply arrives through the
// subscribed observer, not as a return value.
func (s *Session) QueryStatus() error {
	frame, err := s.codec.Encode(protocol.CommandStatus, nil)
	if err != nil {
		return encodingError(err)
	}
	return s.send(frame)
}

// SetPower switches output index on or off
func (s *Session) SetPower(on bool, index int) error {
	if index < 1 {
		return NewValidationError("switch index must be positive, got %d", index)
	}
	return s.SetDPS(map[string]any{strconv.Itoa(index): on})
}

// SetMistMode sets a diffuser mist mode. It always turns output index on too.
func (s *Session) SetMistMode(mode MistMode, index int) error {
	if index < 1 {
		return NewValidationError("switch index must be positive, got %d", index)
	}
	return s.SetDPS(map[string]any{
		strconv.Itoa(index): true,
		mistModeDPS:         mode.dpsValue(),
	})
}

// SetTimer writes seconds to the timer data point.
//
// The device does not say which data point is the timer; this picks the
// last key of the last received status in string sort order, so "9" wins
// over "10". Devices whose timer is not the last key will get the wrong slot.
func (s *Session) SetTimer(seconds int) error {
	if seconds < 0 {
		return NewValidationError("timer seconds must not be negative, got %d", seconds)
	}
	key, err := s.timerKey()
	if err != nil {
		return err
	}
	return s.SetDPS(map[string]any{key: seconds})
}

func (s *Session) timerKey() (string, error) {
	dps := s.Status().DPS()
	if len(dps) == 0 {
		return "", ErrNoStatus
	}
	keys := make([]string, 0, len(dps))
	for k := range dps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[len(keys)-1], nil
}

// SetDPS sends an encrypted SET for arbitrary data points
func (s *Session) SetDPS(dps map[string]any) error {
	if len(dps) == 0 {
		return NewValidationError("no data points to set")
	}
	frame, err := s.codec.Encode(protocol.CommandSet, dps)
	if err != nil {
		return encodingError(err)
	}
	if err := s.send(frame); err != nil {
		return err
	}
	logging.Debug("SET sent", zap.String("addr", s.addr), zap.Any("dps", dps))
	return nil
}

func encodingError(err error) error {
	if errors.Is(err, protocol.ErrPayloadTooLarge) {
		return NewEncodingError("command does not fit in one frame", err)
	}
	return NewEncodingError("failed to encode command", err)
}
