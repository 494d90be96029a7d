package protocol

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

const (
	testDeviceID = "bf1234567890abcd"
	testKey      = "0123456789abcdef"
)

var testNow = time.Unix(1700000000, 0)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testDeviceID, []byte(testKey))
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	c.Now = func() time.Time { return testNow }
	return c
}

func TestBuildFrame(t *testing.T) {
	tests := []struct {
		name        string
		cmd         Command
		payload     []byte
		wantErr     bool
		checkFields func(t *testing.T, frame []byte)
	}{
		{
			name:    "status frame layout",
			cmd:     CommandStatus,
			payload: []byte(`{"gwId":"a","devId":"a"}`),
			checkFields: func(t *testing.T, frame []byte) {
				if !bytes.HasPrefix(frame, mustHex("000055aa00000000000000")) {
					t.Errorf("prefix = %x", frame[:11])
				}
				if frame[11] != 0x0a {
					t.Errorf("command byte = 0x%02x, want 0x0a", frame[11])
				}
				if !bytes.Equal(frame[12:15], []byte{0, 0, 0}) {
					t.Errorf("padding = %x, want 000000", frame[12:15])
				}
				// 24 bytes JSON + 8 bytes suffix
				if frame[15] != 32 {
					t.Errorf("length byte = %d, want 32", frame[15])
				}
				if !bytes.HasSuffix(frame, mustHex("000000000000aa55")) {
					t.Errorf("suffix = %x", frame[len(frame)-8:])
				}
				if len(frame) != 16+24+8 {
					t.Errorf("frame size = %d, want %d", len(frame), 16+24+8)
				}
			},
		},
		{
			name:    "set command byte",
			cmd:     CommandSet,
			payload: []byte("x"),
			checkFields: func(t *testing.T, frame []byte) {
				if frame[11] != 0x07 {
					t.Errorf("command byte = 0x%02x, want 0x07", frame[11])
				}
				if frame[15] != 9 {
					t.Errorf("length byte = %d, want 9", frame[15])
				}
			},
		},
		{
			name:    "maximum valid payload",
			cmd:     CommandSet,
			payload: make([]byte, MaxLength-8),
			checkFields: func(t *testing.T, frame []byte) {
				if frame[15] != 0xff {
					t.Errorf("length byte = 0x%02x, want 0xff", frame[15])
				}
			},
		},
		{
			name:    "payload too large",
			cmd:     CommandSet,
			payload: make([]byte, MaxLength-7),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := BuildFrame(tt.cmd, tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BuildFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrPayloadTooLarge) {
					t.Errorf("BuildFrame() error = %v, want ErrPayloadTooLarge", err)
				}
				return
			}
			tt.checkFields(t, frame)
		})
	}
}

func TestBuildStatusPayload(t *testing.T) {
	got, err := BuildStatusPayload(testDeviceID)
	if err != nil {
		t.Fatalf("BuildStatusPayload() error = %v", err)
	}
	want := `{"gwId":"bf1234567890abcd","devId":"bf1234567890abcd"}`
	if string(got) != want {
		t.Errorf("BuildStatusPayload() = %s, want %s", got, want)
	}
}

func TestBuildSetPayloadHasNoSpaces(t *testing.T) {
	got, err := BuildSetPayload(testDeviceID, map[string]any{"2": "white mode", "1": true}, testNow)
	if err != nil {
		t.Fatalf("BuildSetPayload() error = %v", err)
	}
	want := `{"devId":"bf1234567890abcd","uid":"bf1234567890abcd","t":"1700000000","dps":{"1":true,"2":"whitemode"}}`
	if string(got) != want {
		t.Errorf("BuildSetPayload() = %s, want %s", got, want)
	}
}

func TestCodecEncodeSetGolden(t *testing.T) {
	codec := newTestCodec(t)

	frame, err := codec.Encode(CommandSet, map[string]any{"1": true})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Generated independently with openssl aes-128-ecb and md5
	want := "000055aa00000000000000070000009b332e3163393931613131396661353864616265" +
		"316c4c355575565958547347572f422b486d34415253563068486f4b654467766c574d4c" +
		"6159486c3054763766643747436a2f6e71514d465138592f4a634146464e2b34574e6447" +
		"444c69517479634f354f444330684f526a6b4938746230515442594b632f777452724a69" +
		"4f465639746334626c6d6361616261446161694e000000000000aa55"
	if got := hex.EncodeToString(frame); got != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", got, want)
	}
}

func TestCodecEncodeStatusRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	frame, err := codec.Encode(CommandStatus, nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Device frames have four more header bytes than ours; pad to match
	// the fixed receive offsets.
	received := append(append(append([]byte{}, frame[:16]...), 0, 0, 0, 0), frame[16:]...)

	status, err := codec.Decode(received)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := Status{"gwId": testDeviceID, "devId": testDeviceID}
	if !reflect.DeepEqual(status, want) {
		t.Errorf("Decode() = %v, want %v", status, want)
	}
}

func TestCodecEncodeSetRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	dps := map[string]any{"1": true, "3": 200}

	frame, err := codec.Encode(CommandSet, dps)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	payload, err := FramePayload(frame)
	if err != nil {
		t.Fatalf("FramePayload() error = %v", err)
	}
	if !strings.HasPrefix(string(payload), ProtocolVersion) {
		t.Fatalf("payload does not start with %q: %q", ProtocolVersion, payload[:3])
	}

	plain, err := codec.Decrypt(payload)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}

	wantPlain, _ := BuildSetPayload(testDeviceID, dps, testNow)
	if !bytes.Equal(plain, wantPlain) {
		t.Errorf("Decrypt() = %s, want %s", plain, wantPlain)
	}

	var got map[string]any
	if err := json.Unmarshal(plain, &got); err != nil {
		t.Fatalf("decrypted payload is not JSON: %v", err)
	}
	delete(got, "devId")
	delete(got, "uid")
	delete(got, "t")
	want := map[string]any{"dps": map[string]any{"1": true, "3": float64(200)}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("decoded dps = %v, want %v", got, want)
	}
}

func TestCodecEncodeTooLarge(t *testing.T) {
	codec := newTestCodec(t)
	dps := map[string]any{"1": strings.Repeat("a", 200)}

	if _, err := codec.Encode(CommandSet, dps); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Encode() error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestCodecEncodeUnknownCommand(t *testing.T) {
	codec := newTestCodec(t)
	if _, err := codec.Encode(Command(0x42), nil); err == nil {
		t.Error("Encode() with unknown command should fail")
	}
}

func TestNewCodecRejectsBadKey(t *testing.T) {
	if _, err := NewCodec(testDeviceID, []byte("short")); err == nil {
		t.Error("NewCodec() with 5-byte key should fail")
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandSet, "set"},
		{CommandStatus, "status"},
		{Command(0x13), "unknown(0x13)"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("Command(0x%02x).String() = %v, want %v", byte(tt.cmd), got, tt.want)
		}
	}
}
