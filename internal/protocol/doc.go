// Package protocol implements the Tuya 3.1 local control protocol.
//
// This package handles construction of command frames, encryption of SET
// payloads, and decoding of the frames devices push back over TCP port 6668.
//
// # Frame Format
//
// Frames sent to the device have this structure:
//   - Prefix: 000055aa00000000000000 (11 bytes)
//   - Command: 0x0a (status) or 0x07 (set)
//   - Zero padding: 3 bytes
//   - Length: 1 byte, payload length plus the 8-byte suffix
//   - Payload: variable length
//   - Suffix: 000000000000aa55 (8 bytes)
//
// Frames whose length does not fit the length byte are rejected with
// ErrPayloadTooLarge.
//
// # Payloads
//
// STATUS payloads are plain JSON. SET payloads are encrypted:
//
//	"3.1" + tag(16) + base64(AES-128-ECB(json, PKCS#7))
//
// where tag is characters 8..24 of the hex MD5 digest of
// "data=<base64>||lpv=3.1||<local key>".
//
// # Receive Path
//
// Received chunks have a 20-byte header and an 8-byte trailer which are
// stripped at fixed offsets. Encrypted payloads are decrypted (the tag is not
// verified); plaintext payloads may carry debug noise, so the last
// {..{..}} shaped substring is parsed. The fixed offsets live behind the
// FrameDecoder interface so a length-aware decoder can replace them.
//
// # Usage Example
//
//	codec, err := protocol.NewCodec(deviceID, []byte(localKey))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	frame, err := codec.Encode(protocol.CommandSet, map[string]any{"1": true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	status, err := codec.Decode(received)
//
// # Thread Safety
//
// Codec and Cipher are immutable after construction and safe for concurrent use.
package protocol
