package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Status is a decoded device message, e.g.
// {"devId":"ID","dps":{"1":true,"2":0},"t":1700000000,"s":123}
type Status map[string]any

// DPS returns the data-point-set of the status, or nil if absent
func (s Status) DPS() map[string]any {
	if s == nil {
		return nil
	}
	dps, _ := s["dps"].(map[string]any)
	return dps
}

// DeviceID returns the devId field if present
func (s Status) DeviceID() string {
	id, _ := s["devId"].(string)
	return id
}

// Clone returns a shallow copy with the dps map copied too
func (s Status) Clone() Status {
	if s == nil {
		return nil
	}
	out := make(Status, len(s))
	for k, v := range s {
		out[k] = v
	}
	if dps := s.DPS(); dps != nil {
		cp := make(map[string]any, len(dps))
		for k, v := range dps {
			cp[k] = v
		}
		out["dps"] = cp
	}
	return out
}

// FrameDecoder turns a received chunk into a Status
type FrameDecoder interface {
	Decode(chunk []byte) (Status, error)
}

var (
	// ErrShortFrame is returned when a chunk is smaller than header + trailer
	ErrShortFrame = errors.New("frame too short")

	// ErrNoJSON is returned when no JSON object could be located in a plaintext payload
	ErrNoJSON = errors.New("no JSON object in payload")
)

var (
	// statusPattern matches {"devId": id, "dps": {state}} possibly surrounded by noise
	statusPattern = regexp.MustCompile(`\{[\s\S]*?\{[\s\S]*?\}\}`)

	// flatPattern matches an object with no nested braces, e.g. a status query echo
	flatPattern = regexp.MustCompile(`\{[^{}]*\}`)
)

// StripFrame isolates the payload region of a received chunk.
//
// The receive side does not parse the length field: the firmware sends a
// 20-byte header and an 8-byte trailer and the offsets are fixed.
func StripFrame(chunk []byte) ([]byte, error) {
	if len(chunk) < ReceiveHeaderSize+ReceiveTrailerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(chunk))
	}
	return chunk[ReceiveHeaderSize : len(chunk)-ReceiveTrailerSize], nil
}

// DecodePayload parses an already-stripped payload. Encrypted payloads need a cipher.
func DecodePayload(payload []byte, c *Cipher) (Status, error) {
	if bytes.HasPrefix(payload, []byte(ProtocolVersion)) {
		if c == nil {
			return nil, fmt.Errorf("encrypted payload but no local key")
		}
		enc := payload[len(ProtocolVersion):]
		if len(enc) < TagSize {
			return nil, fmt.Errorf("%w: encrypted payload missing tag", ErrShortFrame)
		}
		// The tag is not verified on receive
		plain, err := c.Decrypt(enc[TagSize:])
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt payload: %w", err)
		}
		return parseJSON(plain)
	}

	if matches := statusPattern.FindAll(payload, -1); len(matches) > 0 {
		return parseJSON(matches[len(matches)-1])
	}
	if matches := flatPattern.FindAll(payload, -1); len(matches) > 0 {
		return parseJSON(matches[len(matches)-1])
	}
	return nil, ErrNoJSON
}

func parseJSON(data []byte) (Status, error) {
	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse JSON payload: %w", err)
	}
	if status == nil {
		return nil, fmt.Errorf("%w: null payload", ErrNoJSON)
	}
	return status, nil
}
