package protocol

import (
	"encoding/hex"
	"errors"
	"reflect"
	"testing"
)

// Captured-style encrypted status frame from a device using testKey:
// seq=1, cmd=0x08, 4-byte return code, CRC and 0000aa55 trailer.
const goldenStatusFrame = "000055aa00000001000000080000008b00000000332e3134346666666130333562303162" +
	"633036316c4c355575565958547347572f422b486d3441525a427133504869396a514b6f" +
	"6a6a2b437a3547444f7135774439346d5636667a71666d414b4c522b4641746d4a724464" +
	"51784544735a6c4d6d45394132586761533973534c5459593446334b50517451362f5075" +
	"6e453dcba458330000aa55"

func receivedFrame(payload string) []byte {
	header := mustHex("000055aa000000000000000a0000000000000000")
	trailer := mustHex("000000000000aa55")
	out := append([]byte{}, header...)
	out = append(out, payload...)
	return append(out, trailer...)
}

func TestDecodeGoldenEncryptedStatus(t *testing.T) {
	codec := newTestCodec(t)

	frame, err := hex.DecodeString(goldenStatusFrame)
	if err != nil {
		t.Fatalf("bad golden hex: %v", err)
	}

	status, err := codec.Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	wantDPS := map[string]any{"1": true, "2": float64(0)}
	if !reflect.DeepEqual(status.DPS(), wantDPS) {
		t.Errorf("Decode().DPS() = %v, want %v", status.DPS(), wantDPS)
	}
	if status.DeviceID() != testDeviceID {
		t.Errorf("Decode().DeviceID() = %v, want %v", status.DeviceID(), testDeviceID)
	}
	if status["t"] != float64(1700000000) {
		t.Errorf("Decode()[t] = %v, want 1700000000", status["t"])
	}
}

func TestDecodePlaintext(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantDPS map[string]any
		wantID  string
		wantErr error
	}{
		{
			name:    "clean JSON",
			payload: `{"devId":"abc","dps":{"1":false}}`,
			wantDPS: map[string]any{"1": false},
		},
		{
			name:    "noise around JSON",
			payload: "\x00\x01garbage{\"devId\":\"abc\",\"dps\":{\"1\":true,\"101\":\"2\"}}\xff\xfe tail",
			wantDPS: map[string]any{"1": true, "101": "2"},
		},
		{
			name:    "last match wins",
			payload: `{"devId":"a","dps":{"1":false}}junk{"devId":"a","dps":{"1":true}}`,
			wantDPS: map[string]any{"1": true},
		},
		{
			name:    "flat object",
			payload: "\x00{\"gwId\":\"abc\",\"devId\":\"abc\"}\x00",
			wantID:  "abc",
		},
		{
			name:    "last flat object wins",
			payload: `{"devId":"a"} {"devId":"b"}`,
			wantID:  "b",
		},
		{
			name:    "unbalanced braces",
			payload: `{"devId":"abc"`,
			wantErr: ErrNoJSON,
		},
		{
			name:    "not JSON at all",
			payload: "data format error",
			wantErr: ErrNoJSON,
		},
	}

	codec := newTestCodec(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := codec.Decode(receivedFrame(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(status.DPS(), tt.wantDPS) {
				t.Errorf("Decode().DPS() = %v, want %v", status.DPS(), tt.wantDPS)
			}
			if tt.wantID != "" && status.DeviceID() != tt.wantID {
				t.Errorf("Decode().DeviceID() = %v, want %v", status.DeviceID(), tt.wantID)
			}
		})
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	codec := newTestCodec(t)
	if _, err := codec.Decode(receivedFrame(`{"devId":{"dps":}}`)); err == nil {
		t.Error("Decode() with malformed JSON should fail")
	}
}

func TestDecodeShortFrame(t *testing.T) {
	codec := newTestCodec(t)
	_, err := codec.Decode(make([]byte, 27))
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("Decode() error = %v, want ErrShortFrame", err)
	}
}

func TestDecodeEncryptedWithWrongKey(t *testing.T) {
	other, err := NewCodec(testDeviceID, []byte("fedcba9876543210"))
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	frame, _ := hex.DecodeString(goldenStatusFrame)

	// A wrong key almost always fails the padding check or yields non-JSON
	if _, err := other.Decode(frame); err == nil {
		t.Error("Decode() with wrong key should fail")
	}
}

func TestDecodeEncryptedMissingTag(t *testing.T) {
	codec := newTestCodec(t)
	if _, err := codec.Decode(receivedFrame("3.1abc")); !errors.Is(err, ErrShortFrame) {
		t.Errorf("Decode() error = %v, want ErrShortFrame", err)
	}
}

func TestStatusClone(t *testing.T) {
	orig := Status{"devId": "x", "dps": map[string]any{"1": true}}
	cp := orig.Clone()
	cp.DPS()["1"] = false

	if orig.DPS()["1"] != true {
		t.Error("Clone() shares the dps map with the original")
	}
	if Status(nil).Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestStatusDPSMissing(t *testing.T) {
	if dps := (Status{"devId": "x"}).DPS(); dps != nil {
		t.Errorf("DPS() = %v, want nil", dps)
	}
}
