package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/tuyalocal/internal/config"
	"github.com/muurk/tuyalocal/internal/device"
	"github.com/muurk/tuyalocal/internal/entity"
	"github.com/muurk/tuyalocal/internal/protocol"
)

// fakeBulb records commands and lets tests push statuses
type fakeBulb struct {
	id string

	mu       sync.Mutex
	calls    []string
	args     [][]any
	observer func(protocol.Status)
	failWith error
}

func (f *fakeBulb) record(name string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.failWith
}

func (f *fakeBulb) last() (string, []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return "", nil
	}
	return f.calls[len(f.calls)-1], f.args[len(f.args)-1]
}

func (f *fakeBulb) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeBulb) push(dps map[string]any) {
	f.mu.Lock()
	cb := f.observer
	f.mu.Unlock()
	cb(protocol.Status{"devId": f.id, "dps": dps})
}

func (f *fakeBulb) ID() string { return f.id }
func (f *fakeBulb) Subscribe(cb func(protocol.Status)) error {
	f.mu.Lock()
	f.observer = cb
	f.mu.Unlock()
	return f.record("Subscribe")
}
func (f *fakeBulb) QueryStatus() error { return f.record("QueryStatus") }
func (f *fakeBulb) SetPower(on bool, index int) error {
	return f.record("SetPower", on, index)
}
func (f *fakeBulb) SetMistMode(mode device.MistMode, index int) error {
	return f.record("SetMistMode", mode, index)
}
func (f *fakeBulb) SetTimer(seconds int) error { return f.record("SetTimer", seconds) }
func (f *fakeBulb) Close() error               { return f.record("Close") }
func (f *fakeBulb) SetBrightness(b int) error  { return f.record("SetBrightness", b) }
func (f *fakeBulb) SetWhite(b, ct int) error   { return f.record("SetWhite", b, ct) }
func (f *fakeBulb) SetColor(r, g, b, brightness int) error {
	return f.record("SetColor", r, g, b, brightness)
}

func newTestHub(t *testing.T) (*Hub, map[string]*fakeBulb) {
	t.Helper()
	devs := map[string]*fakeBulb{
		"plug": {id: "plug"},
		"mist": {id: "mist"},
		"lamp": {id: "lamp"},
		"dim":  {id: "dim"},
	}
	h := NewHub()
	for _, e := range []entity.Entity{
		entity.NewSwitch(devs["plug"], "Plug", entity.KindSwitch),
		entity.NewSwitch(devs["mist"], "Diffuser", entity.KindDiffuser),
		entity.NewLight(devs["lamp"], "Lamp", entity.KindBulb),
		entity.NewLight(devs["dim"], "Dimmer", entity.KindDimmer),
	} {
		if err := h.Add(e); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	return h, devs
}

func intp(i int) *int           { return &i }
func floatp(f float64) *float64 { return &f }

func TestHubAdd(t *testing.T) {
	h, devs := newTestHub(t)

	if devs["plug"].count("Subscribe") != 1 {
		t.Error("Add() should start the entity")
	}
	if err := h.Add(entity.NewSwitch(&fakeBulb{id: "plug"}, "Other", entity.KindSwitch)); err == nil {
		t.Error("Add() should reject a duplicate id")
	}

	ids := []string{}
	for _, e := range h.Entities() {
		ids = append(ids, e.ID())
	}
	if strings.Join(ids, ",") != "dim,lamp,mist,plug" {
		t.Errorf("Entities() order = %v", ids)
	}

	if e, ok := h.Get("Lamp"); !ok || e.ID() != "lamp" {
		t.Error("Get() should find by name")
	}
	if _, ok := h.Get("nope"); ok {
		t.Error("Get(nope) should fail")
	}
}

func TestHubExecute(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		device   string
		wantCall string
		wantArgs []any
		wantErr  string
	}{
		{"on", Command{Device: "plug", Action: ActionOn}, "plug", "SetPower", []any{true, 1}, ""},
		{"off by name", Command{Device: "Plug", Action: ActionOff}, "plug", "SetPower", []any{false, 1}, ""},
		{"status", Command{Device: "plug", Action: ActionStatus}, "plug", "QueryStatus", []any{}, ""},
		{"timer", Command{Device: "plug", Action: ActionTimer, Params: Params{Seconds: intp(600)}}, "plug", "SetTimer", []any{600}, ""},
		{"timer missing", Command{Device: "plug", Action: ActionTimer}, "plug", "", nil, "seconds"},
		{"mist", Command{Device: "mist", Action: ActionMist, Params: Params{Mode: "intermittent"}}, "mist", "SetMistMode", []any{device.MistIntermittent, 1}, ""},
		{"mist default mode", Command{Device: "mist", Action: ActionMist}, "mist", "SetMistMode", []any{device.MistContinuous, 1}, ""},
		{"mist off", Command{Device: "mist", Action: ActionMist, Params: Params{Mode: "off"}}, "mist", "SetMistMode", []any{device.MistOff, 1}, ""},
		{"mist unknown mode", Command{Device: "mist", Action: ActionMist, Params: Params{Mode: "contnuous"}}, "mist", "", nil, "unknown mist mode"},
		{"mist on plug", Command{Device: "plug", Action: ActionMist, Params: Params{Mode: "continuous"}}, "plug", "", nil, "not supported"},
		{"brightness", Command{Device: "dim", Action: ActionBrightness, Params: Params{Brightness: intp(10)}}, "dim", "SetBrightness", []any{25}, ""},
		{"brightness on plug", Command{Device: "plug", Action: ActionBrightness, Params: Params{Brightness: intp(100)}}, "plug", "", nil, "not supported"},
		{"brightness missing", Command{Device: "dim", Action: ActionBrightness}, "dim", "", nil, "brightness is required"},
		{"on with brightness", Command{Device: "lamp", Action: ActionOn, Params: Params{Brightness: intp(128)}}, "lamp", "SetBrightness", []any{128}, ""},
		{"color", Command{Device: "lamp", Action: ActionColor, Params: Params{Hue: floatp(240), Saturation: floatp(50), Brightness: intp(200)}}, "lamp", "SetColor", []any{127, 127, 255, 200}, ""},
		{"color on dimmer", Command{Device: "dim", Action: ActionColor, Params: Params{Hue: floatp(0), Saturation: floatp(100)}}, "dim", "", nil, "not supported"},
		{"color missing", Command{Device: "lamp", Action: ActionColor, Params: Params{Hue: floatp(0)}}, "lamp", "", nil, "hue and saturation"},
		{"white", Command{Device: "lamp", Action: ActionWhite, Params: Params{ColorTemp: intp(300), Brightness: intp(255)}}, "lamp", "SetWhite", []any{255, 147}, ""},
		{"unknown action", Command{Device: "plug", Action: "explode"}, "plug", "", nil, "unknown action"},
		{"unknown device", Command{Device: "ghost", Action: ActionOn}, "", "", nil, "unknown device"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, devs := newTestHub(t)
			tt.cmd.ID = "req-1"

			res, err := h.Execute(tt.cmd)
			if (err != nil) != (tt.wantErr != "") {
				t.Errorf("Execute() error = %v, wantErr %q", err, tt.wantErr)
			}
			if res.ID != "req-1" || res.Action != tt.cmd.Action {
				t.Errorf("Result = %+v, should echo id and action", res)
			}

			if tt.wantErr != "" {
				if res.OK || !strings.Contains(res.Error, tt.wantErr) {
					t.Errorf("Execute() = %+v, want error containing %q", res, tt.wantErr)
				}
				if tt.device != "" {
					if call, _ := devs[tt.device].last(); call != "Subscribe" {
						t.Errorf("failed command still sent %s", call)
					}
				}
				return
			}

			if !res.OK || res.Error != "" {
				t.Fatalf("Execute() = %+v", res)
			}
			if res.Device != tt.device || res.State == nil || res.State.ID != tt.device {
				t.Errorf("Result device/state = %v/%+v", res.Device, res.State)
			}
			call, args := devs[tt.device].last()
			if call != tt.wantCall {
				t.Fatalf("device call = %v, want %v", call, tt.wantCall)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args = %v, want %v", args, tt.wantArgs)
					break
				}
			}
		})
	}
}

func TestHubExecuteDeviceError(t *testing.T) {
	h, devs := newTestHub(t)
	devs["plug"].failWith = device.NewNetworkError("send failed", errors.New("boom"), "10.0.0.2:6668")

	res, err := h.Execute(Command{Device: "plug", Action: ActionOn})
	if !device.IsNetworkError(err) {
		t.Errorf("Execute() error = %v, want a network error", err)
	}
	if res.OK || res.Error != "Network error - check connection" {
		t.Errorf("Execute() = %+v", res)
	}
}

func TestHubExecuteErrorKinds(t *testing.T) {
	h, _ := newTestHub(t)

	if _, err := h.Execute(Command{Device: "ghost", Action: ActionOn}); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("unknown device error = %v", err)
	}
	if _, err := h.Execute(Command{Device: "plug", Action: ActionColor}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("unsupported error = %v", err)
	}
	if _, err := h.Execute(Command{Device: "lamp", Action: ActionWhite}); !device.IsValidationError(err) {
		t.Errorf("validation error = %v", err)
	}
}

func TestHubEvents(t *testing.T) {
	h, devs := newTestHub(t)

	events, unsubscribe := h.Subscribe()
	devs["plug"].push(map[string]any{"1": true})

	select {
	case snap := <-events:
		if snap.ID != "plug" || !snap.On {
			t.Errorf("event = %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-events; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// Publishing without subscribers must not block
	devs["lamp"].push(map[string]any{"1": true, "3": 100.0})
	for _, s := range h.Snapshots() {
		if s.ID == "lamp" && (!s.On || s.Attributes["brightness"] != 100) {
			t.Errorf("lamp snapshot = %+v", s)
		}
	}
}

func TestHubSlowSubscriber(t *testing.T) {
	h, devs := newTestHub(t)
	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		devs["plug"].push(map[string]any{"1": i%2 == 0})
	}
	if len(events) != subscriberBuffer {
		t.Errorf("queued %d events, want %d", len(events), subscriberBuffer)
	}
}

func TestHubClose(t *testing.T) {
	h, devs := newTestHub(t)
	events, _ := h.Subscribe()

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-events; ok {
		t.Error("Close() should close subscriber channels")
	}
	for id, d := range devs {
		if d.count("Close") != 1 {
			t.Errorf("%s closed %d times", id, d.count("Close"))
		}
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	late, _ := h.Subscribe()
	if _, ok := <-late; ok {
		t.Error("Subscribe() after Close() should return a closed channel")
	}
}

func TestHubRefresh(t *testing.T) {
	h, devs := newTestHub(t)
	devs["dim"].failWith = errors.New("offline")

	if failed := h.Refresh(); failed != 1 {
		t.Errorf("Refresh() failed = %d, want 1", failed)
	}
	for id, d := range devs {
		if d.count("QueryStatus") != 1 {
			t.Errorf("%s polled %d times", id, d.count("QueryStatus"))
		}
	}
}

func TestFromRegistry(t *testing.T) {
	reg := config.NewRegistry()
	if err := reg.SetDevice("bf00000000000001", &config.Device{Name: "Lamp", Host: "127.0.0.1", Port: 1, LocalKey: "0123456789abcdef", Type: "bulb"}); err != nil {
		t.Fatalf("SetDevice() error = %v", err)
	}
	reg.Preferences.ConnectTimeout = 100 * time.Millisecond

	h, err := FromRegistry(reg)
	if err != nil {
		t.Fatalf("FromRegistry() error = %v", err)
	}
	defer h.Close()

	e, ok := h.Get("Lamp")
	if !ok {
		t.Fatal("device not registered")
	}
	if _, isLight := e.(*entity.Light); !isLight || e.Kind() != entity.KindBulb {
		t.Errorf("entity = %T (%v), want *entity.Light bulb", e, e.Kind())
	}
}

func TestPoller(t *testing.T) {
	h, devs := newTestHub(t)
	p := NewPoller(h, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for devs["plug"].count("QueryStatus") < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if devs["plug"].count("QueryStatus") < 2 {
		t.Error("poller should query repeatedly")
	}
}

func TestNewPollerDefault(t *testing.T) {
	if p := NewPoller(NewHub(), 0); p.Interval() != config.DefaultPollInterval {
		t.Errorf("Interval() = %v, want %v", p.Interval(), config.DefaultPollInterval)
	}
}
