package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Wire constants for the 3.1 local protocol
const (
	// DefaultPort is the TCP port devices listen on
	DefaultPort = 6668

	// BroadcastPort is the UDP port devices announce themselves on
	BroadcastPort = 6666

	// ProtocolVersion prefixes encrypted payloads
	ProtocolVersion = "3.1"

	// KeySize is the local key length (AES-128)
	KeySize = 16

	// TagSize is the length of the MD5-derived tag after the version marker
	TagSize = 16

	// ReceiveHeaderSize and ReceiveTrailerSize are stripped from received chunks
	ReceiveHeaderSize  = 20
	ReceiveTrailerSize = 8

	// MaxLength is the largest value the single length byte can carry
	MaxLength = 0xff
)

// Command is the one-byte command code in a frame
type Command byte

const (
	CommandSet    Command = 0x07
	CommandStatus Command = 0x0a
)

// String returns a human-readable command name
func (c Command) String() string {
	switch c {
	case CommandSet:
		return "set"
	case CommandStatus:
		return "status"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(c))
	}
}

var (
	framePrefix = mustHex("000055aa00000000000000")
	frameSuffix = mustHex("000000000000aa55")
)

// ErrPayloadTooLarge is returned when a payload cannot be described by the length byte
var ErrPayloadTooLarge = errors.New("payload too large for frame")

// BuildFrame wraps a payload in a command frame.
//
// Frame Structure:
//
//	[0-10]  000055aa00000000000000  Prefix
//	[11]    command                 CommandStatus or CommandSet
//	[12-14] 000000                  Zero padding
//	[15]    length                  len(payload) + len(suffix)
//	[16+]   payload
//	[N+]    000000000000aa55        Suffix
//
// The length byte counts the suffix too. Frames whose length would not fit
// in one byte are rejected rather than truncated.
func BuildFrame(cmd Command, payload []byte) ([]byte, error) {
	length := len(payload) + len(frameSuffix)
	if length > MaxLength {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, length, MaxLength)
	}

	frame := make([]byte, 0, len(framePrefix)+5+length)
	frame = append(frame, framePrefix...)
	frame = append(frame, byte(cmd), 0x00, 0x00, 0x00, byte(length))
	frame = append(frame, payload...)
	frame = append(frame, frameSuffix...)
	return frame, nil
}

// FramePayload returns the payload region of a frame built by BuildFrame
func FramePayload(frame []byte) ([]byte, error) {
	headerLen := len(framePrefix) + 5
	if len(frame) < headerLen+len(frameSuffix) {
		return nil, fmt.Errorf("frame too short: %d bytes", len(frame))
	}
	return frame[headerLen : len(frame)-len(frameSuffix)], nil
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
