package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Payload builders for the commands sent to a device.
//
// Field order matters to some firmware, so the payloads are structs rather
// than maps. The dps map itself is marshalled with sorted keys.

type statusPayload struct {
	GwID  string `json:"gwId"`
	DevID string `json:"devId"`
}

type setPayload struct {
	DevID string         `json:"devId"`
	UID   string         `json:"uid"`
	T     string         `json:"t"`
	DPS   map[string]any `json:"dps,omitempty"`
}

// BuildStatusPayload returns {"gwId":ID,"devId":ID}
func BuildStatusPayload(devID string) ([]byte, error) {
	return compactJSON(statusPayload{GwID: devID, DevID: devID})
}

// BuildSetPayload returns {"devId":ID,"uid":ID,"t":"<unix>","dps":{...}}.
// uid is the device id; these devices have no separate user id.
func BuildSetPayload(devID string, dps map[string]any, now time.Time) ([]byte, error) {
	return compactJSON(setPayload{
		DevID: devID,
		UID:   devID,
		T:     strconv.FormatInt(now.Unix(), 10),
		DPS:   dps,
	})
}

// compactJSON serialises v and strips every space; devices do not respond
// to payloads that contain spaces.
func compactJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	return bytes.ReplaceAll(out, []byte(" "), nil), nil
}

// Codec encodes commands for, and decodes messages from, one device
type Codec struct {
	DeviceID string
	cipher   *Cipher

	// Now returns the timestamp for SET payloads (time.Now when nil)
	Now func() time.Time
}

// NewCodec creates a codec for a device id and its 16-byte local key
func NewCodec(deviceID string, localKey []byte) (*Codec, error) {
	c, err := NewCipher(localKey)
	if err != nil {
		return nil, err
	}
	return &Codec{DeviceID: deviceID, cipher: c}, nil
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Encode builds a complete frame. STATUS payloads are plain JSON; SET
// payloads are encrypted and tagged.
func (c *Codec) Encode(cmd Command, dps map[string]any) ([]byte, error) {
	var (
		payload []byte
		err     error
	)

	switch cmd {
	case CommandStatus:
		payload, err = BuildStatusPayload(c.DeviceID)
	case CommandSet:
		payload, err = BuildSetPayload(c.DeviceID, dps, c.now())
		if err == nil {
			payload = c.cipher.EncryptPayload(payload)
		}
	default:
		return nil, fmt.Errorf("unsupported command %s", cmd)
	}
	if err != nil {
		return nil, err
	}

	return BuildFrame(cmd, payload)
}

// Decode strips the fixed receive header/trailer and parses the payload
func (c *Codec) Decode(chunk []byte) (Status, error) {
	payload, err := StripFrame(chunk)
	if err != nil {
		return nil, err
	}
	return DecodePayload(payload, c.cipher)
}

// Decrypt exposes the SET payload decryption, for inspection tools and tests
func (c *Codec) Decrypt(payload []byte) ([]byte, error) {
	if !bytes.HasPrefix(payload, []byte(ProtocolVersion)) || len(payload) < len(ProtocolVersion)+TagSize {
		return nil, fmt.Errorf("payload is not a %s encrypted payload", ProtocolVersion)
	}
	return c.cipher.Decrypt(payload[len(ProtocolVersion)+TagSize:])
}
