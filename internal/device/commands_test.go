package device

import (
	"errors"
	"reflect"
	"testing"

	"github.com/muurk/tuyalocal/internal/protocol"
)

func TestSetTimerPicksLastKeyInStringOrder(t *testing.T) {
	tests := []struct {
		name    string
		dps     map[string]any
		wantKey string
	}{
		// String order, not numeric: "9" sorts after "10"
		{"string order", map[string]any{"1": true, "9": 0, "10": 0}, "9"},
		{"single key", map[string]any{"1": true}, "1"},
		{"typical plug", map[string]any{"1": true, "2": 0}, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDialer{}
			s := newTestSession(t, d)
			st := protocol.Status{"devId": testDeviceID, "dps": tt.dps}
			s.status.Store(&st)

			if err := s.SetTimer(90); err != nil {
				t.Fatalf("SetTimer() error = %v", err)
			}
			frames := d.frames()
			if len(frames) != 1 {
				t.Fatalf("frames written = %d, want 1", len(frames))
			}
			want := map[string]any{tt.wantKey: float64(90)}
			if got := sentDPS(t, frames[0]); !reflect.DeepEqual(got, want) {
				t.Errorf("dps = %v, want %v", got, want)
			}
		})
	}
}

func TestSetTimerWithoutStatus(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, d)

	if err := s.SetTimer(30); !errors.Is(err, ErrNoStatus) {
		t.Errorf("SetTimer() error = %v, want ErrNoStatus", err)
	}
	if d.dialCount() != 0 {
		t.Errorf("dials = %d, want 0", d.dialCount())
	}
}

func TestSetMistMode(t *testing.T) {
	tests := []struct {
		mode MistMode
		want string
	}{
		{MistContinuous, "1"},
		{MistIntermittent, "2"},
		{MistOff, "3"},
		{ParseMistMode("bogus"), "3"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			d := &fakeDialer{}
			s := newTestSession(t, d)

			if err := s.SetMistMode(tt.mode, 1); err != nil {
				t.Fatalf("SetMistMode() error = %v", err)
			}
			want := map[string]any{"1": true, "101": tt.want}
			if got := sentDPS(t, d.frames()[0]); !reflect.DeepEqual(got, want) {
				t.Errorf("dps = %v, want %v", got, want)
			}
		})
	}
}

func TestSetPowerIndex(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, d)

	if err := s.SetPower(false, 3); err != nil {
		t.Fatalf("SetPower() error = %v", err)
	}
	want := map[string]any{"3": false}
	if got := sentDPS(t, d.frames()[0]); !reflect.DeepEqual(got, want) {
		t.Errorf("dps = %v, want %v", got, want)
	}
}

func TestQueryStatusIsPlaintext(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, d)

	if err := s.QueryStatus(); err != nil {
		t.Fatalf("QueryStatus() error = %v", err)
	}
	frame := d.frames()[0]
	if protocol.Command(frame[11]) != protocol.CommandStatus {
		t.Errorf("command = %v, want status", protocol.Command(frame[11]))
	}
	payload, _ := protocol.FramePayload(frame)
	want := `{"gwId":"bf1234567890abcd","devId":"bf1234567890abcd"}`
	if string(payload) != want {
		t.Errorf("payload = %s, want %s", payload, want)
	}
}

func TestParseMistMode(t *testing.T) {
	tests := []struct {
		in   string
		want MistMode
	}{
		{"continuous", MistContinuous},
		{"intermittent", MistIntermittent},
		{"off", MistOff},
		{"", MistOff},
	}
	for _, tt := range tests {
		if got := ParseMistMode(tt.in); got != tt.want {
			t.Errorf("ParseMistMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
