package protocol

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/muurk/tuyalocal/internal/logging"
	"go.uber.org/zap"
)

// Inspection describes a captured frame for debugging
type Inspection struct {
	Length    int
	Command   Command
	Encrypted bool
	Tag       string
	Plaintext string
	Status    Status
	Err       error
}

// Inspect decodes a captured frame as far as possible without failing.
// Both frames we send (16-byte header) and frames the device sends
// (20-byte header) are recognised.
func Inspect(frame []byte, c *Cipher) *Inspection {
	in := &Inspection{Length: len(frame)}

	if len(frame) > len(framePrefix) {
		in.Command = Command(frame[len(framePrefix)])
	}

	// Outgoing frames carry the payload at offset 16, device frames add a
	// 4-byte return code before it.
	var payload []byte
	if sent, err := FramePayload(frame); err == nil &&
		(bytes.HasPrefix(sent, []byte("{")) || bytes.HasPrefix(sent, []byte(ProtocolVersion))) {
		payload = sent
	} else {
		payload, in.Err = StripFrame(frame)
	}
	if in.Err != nil {
		logging.Warn("Failed to locate frame payload",
			zap.Int("length", len(frame)),
			zap.Error(in.Err),
		)
		return in
	}

	if bytes.HasPrefix(payload, []byte(ProtocolVersion)) && len(payload) >= len(ProtocolVersion)+TagSize {
		in.Encrypted = true
		in.Tag = string(payload[len(ProtocolVersion) : len(ProtocolVersion)+TagSize])
		if c != nil {
			plain, err := c.Decrypt(payload[len(ProtocolVersion)+TagSize:])
			if err != nil {
				in.Err = err
			} else {
				in.Plaintext = string(plain)
			}
		}
	} else {
		in.Plaintext = string(payload)
	}

	if in.Err == nil {
		in.Status, in.Err = DecodePayload(payload, c)
	}

	logging.Debug("Inspected frame",
		zap.String("command", in.Command.String()),
		zap.Int("length", in.Length),
		zap.Bool("encrypted", in.Encrypted),
		zap.String("hex", hex.EncodeToString(frame)),
	)

	return in
}

// String renders the inspection as multi-line text
func (in *Inspection) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Length:    %d bytes\n", in.Length)
	fmt.Fprintf(&sb, "Command:   %s\n", in.Command)
	fmt.Fprintf(&sb, "Encrypted: %v\n", in.Encrypted)
	if in.Tag != "" {
		fmt.Fprintf(&sb, "Tag:       %s\n", in.Tag)
	}
	if in.Plaintext != "" {
		fmt.Fprintf(&sb, "Payload:   %s\n", in.Plaintext)
	}
	if in.Status != nil {
		fmt.Fprintf(&sb, "DPS:       %v\n", in.Status.DPS())
	}
	if in.Err != nil {
		fmt.Fprintf(&sb, "Error:     %v\n", in.Err)
	}
	return sb.String()
}
