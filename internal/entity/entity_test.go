package entity

import (
	"reflect"
	"testing"

	"github.com/muurk/tuyalocal/internal/device"
	"github.com/muurk/tuyalocal/internal/protocol"
)

// fakeDevice records the commands issued by an entity
type fakeDevice struct {
	id       string
	calls    []string
	args     [][]any
	observer func(protocol.Status)
}

func (f *fakeDevice) record(name string, args ...any) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return nil
}

func (f *fakeDevice) ID() string { return f.id }
func (f *fakeDevice) Subscribe(cb func(protocol.Status)) error {
	f.observer = cb
	return f.record("Subscribe")
}
func (f *fakeDevice) QueryStatus() error { return f.record("QueryStatus") }
func (f *fakeDevice) SetPower(on bool, index int) error {
	return f.record("SetPower", on, index)
}
func (f *fakeDevice) SetMistMode(mode device.MistMode, index int) error {
	return f.record("SetMistMode", mode, index)
}
func (f *fakeDevice) SetTimer(seconds int) error {
	return f.record("SetTimer", seconds)
}
func (f *fakeDevice) Close() error { return f.record("Close") }
func (f *fakeDevice) SetBrightness(b int) error {
	return f.record("SetBrightness", b)
}
func (f *fakeDevice) SetWhite(b, ct int) error {
	return f.record("SetWhite", b, ct)
}
func (f *fakeDevice) SetColor(r, g, b, brightness int) error {
	return f.record("SetColor", r, g, b, brightness)
}

func (f *fakeDevice) last() (string, []any) {
	if len(f.calls) == 0 {
		return "", nil
	}
	return f.calls[len(f.calls)-1], f.args[len(f.args)-1]
}

func status(dps map[string]any) protocol.Status {
	return protocol.Status{"devId": "dev1", "dps": dps}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindSwitch, false},
		{"switch", KindSwitch, false},
		{"Bulb", KindBulb, false},
		{"humidifier", KindHumidifier, false},
		{"toaster", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !KindDimmer.IsLight() || KindDiffuser.IsLight() {
		t.Error("IsLight() mismatch")
	}
}

func TestNew(t *testing.T) {
	cfg := device.Config{ID: "dev1", Address: "10.0.0.5", LocalKey: []byte("0123456789abcdef")}

	e, err := New(KindBulb, "Lamp", cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()
	if _, ok := e.(*Light); !ok {
		t.Errorf("New(bulb) = %T, want *Light", e)
	}

	e, err = New(KindHumidifier, "Humidifier", cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()
	if _, ok := e.(*Switch); !ok {
		t.Errorf("New(humidifier) = %T, want *Switch", e)
	}

	if _, err := New(KindSwitch, "bad", device.Config{ID: "x"}); err == nil {
		t.Error("New() should reject an invalid config")
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		in     any
		want   int
		wantOK bool
	}{
		{float64(200), 200, true},
		{7, 7, true},
		{"42", 42, true},
		{"x", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := asInt(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("asInt(%v) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSwitchStart(t *testing.T) {
	dev := &fakeDevice{id: "dev1"}
	sw := NewSwitch(dev, "Plug", KindSwitch)

	if err := sw.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if dev.observer == nil {
		t.Fatal("Start() did not subscribe")
	}

	var got []Snapshot
	sw.OnChange(func(s Snapshot) { got = append(got, s) })

	dev.observer(status(map[string]any{"1": true}))
	if !sw.IsOn() {
		t.Error("IsOn() = false after dps 1 true")
	}
	if len(got) != 1 || !got[0].On || got[0].UniqueID != "tuya_dev1" {
		t.Errorf("OnChange snapshots = %+v", got)
	}

	// No dps: ignored
	dev.observer(protocol.Status{"devId": "dev1"})
	if len(got) != 1 {
		t.Errorf("status without dps should be ignored, got %d notifications", len(got))
	}
}

func TestSwitchCommands(t *testing.T) {
	dev := &fakeDevice{id: "dev1"}
	sw := NewSwitch(dev, "Diffuser", KindDiffuser)

	tests := []struct {
		name     string
		call     func() error
		wantCall string
		wantArgs []any
	}{
		{"on", sw.TurnOn, "SetPower", []any{true, 1}},
		{"off", sw.TurnOff, "SetPower", []any{false, 1}},
		{"mist", func() error { return sw.SetMistMode(device.MistIntermittent) }, "SetMistMode", []any{device.MistIntermittent, 1}},
		{"update", sw.Update, "QueryStatus", []any(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("error = %v", err)
			}
			call, args := dev.last()
			if call != tt.wantCall || !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("last call = %s%v, want %s%v", call, args, tt.wantCall, tt.wantArgs)
			}
		})
	}
}

func TestDiffuserMistMode(t *testing.T) {
	tests := []struct {
		value any
		want  device.MistMode
	}{
		{"1", device.MistContinuous},
		{"2", device.MistIntermittent},
		{"3", device.MistOff},
		{"9", device.MistOff},
	}
	for _, tt := range tests {
		sw := NewSwitch(&fakeDevice{id: "d"}, "Diffuser", KindDiffuser)
		sw.HandleStatus(status(map[string]any{"1": true, "101": tt.value}))
		if got := sw.MistMode(); got != tt.want {
			t.Errorf("MistMode() for %v = %v, want %v", tt.value, got, tt.want)
		}
		if got := sw.Attributes()["mistmode"]; got != string(tt.want) {
			t.Errorf("Attributes()[mistmode] = %v, want %v", got, tt.want)
		}
	}
}

func TestHumidifierAttributes(t *testing.T) {
	sw := NewSwitch(&fakeDevice{id: "h"}, "Humidifier", KindHumidifier)

	defaults := sw.Attributes()
	want := map[string]any{"foglevel": FogLow, "led_lights": true, "water_low": false}
	if !reflect.DeepEqual(defaults, want) {
		t.Errorf("default Attributes() = %v, want %v", defaults, want)
	}

	tests := []struct {
		fog  string
		want string
	}{
		{"0", FogOff},
		{"1", FogLow},
		{"2", FogMedium},
		{"3", FogHigh},
	}
	for _, tt := range tests {
		sw.HandleStatus(status(map[string]any{"6": tt.fog}))
		if got := sw.FogLevel(); got != tt.want {
			t.Errorf("FogLevel() for %q = %v, want %v", tt.fog, got, tt.want)
		}
	}

	sw.HandleStatus(status(map[string]any{"1": true, "11": false, "101": true}))
	attr := sw.Attributes()
	if attr["led_lights"] != false || attr["water_low"] != true {
		t.Errorf("Attributes() = %v", attr)
	}

	// A plain switch carries no extra attributes
	plain := NewSwitch(&fakeDevice{id: "p"}, "Plug", KindSwitch)
	if len(plain.Attributes()) != 0 {
		t.Errorf("switch Attributes() = %v, want empty", plain.Attributes())
	}
}
