package entity

import (
	"math"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"github.com/muurk/tuyalocal/internal/device"
	"github.com/muurk/tuyalocal/internal/logging"
	"github.com/muurk/tuyalocal/internal/protocol"
)

// Colour temperature range in mireds
const (
	MinMireds = 153
	MaxMireds = 500
)

const (
	dpsLightPower = "1"
	dpsLightMode  = "2"
	dpsBrightness = "3"
	dpsColorTemp  = "4"
	dpsColor      = "5"
)

// HSColor is hue in degrees (0-360) and saturation in percent (0-100)
type HSColor struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
}

// LightOptions are the optional arguments of TurnOnWith. At most one of
// Color and ColorTemp is used; Color wins.
type LightOptions struct {
	Brightness *int
	Color      *HSColor
	// ColorTemp in mireds
	ColorTemp *int
}

// Light is a dimmer or an RGB bulb
type Light struct {
	dev  BulbDevice
	name string
	kind Kind

	mu         sync.RWMutex
	on         bool
	mode       string
	brightness int
	color      [3]float64
	colorTemp  int
	updated    time.Time
	listener   func(Snapshot)
}

// NewLight wraps a bulb session
func NewLight(dev BulbDevice, name string, kind Kind) *Light {
	return &Light{dev: dev, name: name, kind: kind, mode: device.ModeWhite}
}

func (l *Light) ID() string   { return l.dev.ID() }
func (l *Light) Name() string { return l.name }
func (l *Light) Kind() Kind   { return l.kind }

// Start subscribes to status updates
func (l *Light) Start() error {
	return l.dev.Subscribe(l.HandleStatus)
}

// Update requests a status refresh
func (l *Light) Update() error {
	return l.dev.QueryStatus()
}

// Close closes the underlying session
func (l *Light) Close() error {
	return l.dev.Close()
}

// SupportsColor reports whether the light takes colour and colour temperature
func (l *Light) SupportsColor() bool {
	return l.kind == KindBulb
}

// TurnOn turns the light on at its current brightness
func (l *Light) TurnOn() error {
	return l.TurnOnWith(LightOptions{})
}

// TurnOnWith turns the light on, optionally changing brightness, colour or
// colour temperature. Brightness is clamped to 25-255.
func (l *Light) TurnOnWith(opts LightOptions) error {
	l.mu.RLock()
	brightness := l.brightness
	mode := l.mode
	current := l.color
	l.mu.RUnlock()

	if opts.Brightness != nil {
		brightness = *opts.Brightness
	}
	brightness = clamp(brightness, device.MinBrightness, device.MaxBrightness)

	switch {
	case opts.Color != nil:
		r, g, b := hsToRGB(*opts.Color)
		return l.dev.SetColor(r, g, b, brightness)
	case opts.ColorTemp != nil:
		return l.dev.SetWhite(brightness, miredsToDevice(*opts.ColorTemp))
	case mode == device.ModeColour:
		// In colour mode brightness only changes through the colour command
		return l.dev.SetColor(channel(current[0]), channel(current[1]), channel(current[2]), brightness)
	default:
		return l.dev.SetBrightness(brightness)
	}
}

// TurnOff switches the light off
func (l *Light) TurnOff() error {
	return l.dev.SetPower(false, 1)
}

// SetTimer sets the device countdown timer in seconds
func (l *Light) SetTimer(seconds int) error {
	return l.dev.SetTimer(seconds)
}

// OnChange registers the change listener
func (l *Light) OnChange(fn func(Snapshot)) {
	l.mu.Lock()
	l.listener = fn
	l.mu.Unlock()
}

// HandleStatus applies a received status. Statuses without dps are ignored.
func (l *Light) HandleStatus(st protocol.Status) {
	dps := st.DPS()
	if dps == nil {
		return
	}

	l.mu.Lock()
	if on, ok := asBool(dps[dpsLightPower]); ok {
		l.on = on
	}
	if v, ok := dps[dpsLightMode]; ok {
		l.mode = asString(v)
	}
	if b, ok := asInt(dps[dpsBrightness]); ok {
		l.brightness = b
	}
	if ct, ok := dps[dpsColorTemp].(float64); ok {
		l.colorTemp = MaxMireds - int(ct*(MaxMireds-MinMireds)/255)
	}
	if v, ok := dps[dpsColor].(string); ok {
		if r, g, b, ok := device.ParseColorHex(v, l.brightness); ok {
			l.color = [3]float64{r, g, b}
		}
	}
	l.updated = time.Now()
	fn := l.listener
	l.mu.Unlock()

	logging.Debug("Light state updated", zap.String("device_id", l.ID()), zap.String("kind", string(l.kind)))

	if fn != nil {
		fn(l.Snapshot())
	}
}

// IsOn reports the power state
func (l *Light) IsOn() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.on
}

// Brightness returns 0-255
func (l *Light) Brightness() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.brightness
}

// ColorTemp returns the colour temperature in mireds
func (l *Light) ColorTemp() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.colorTemp
}

// Mode returns "white" or "colour"
func (l *Light) Mode() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode
}

// HSColor returns the current colour. In white mode it is white.
func (l *Light) HSColor() HSColor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hsColorLocked()
}

func (l *Light) hsColorLocked() HSColor {
	if l.mode == device.ModeWhite {
		return rgbToHS(255, 255, 255)
	}
	return rgbToHS(l.color[0], l.color[1], l.color[2])
}

// Attributes returns the kind-specific state attributes
func (l *Light) Attributes() map[string]any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.attributesLocked()
}

func (l *Light) attributesLocked() map[string]any {
	attr := map[string]any{"brightness": l.brightness}
	if l.kind == KindBulb {
		attr["mode"] = l.mode
		attr["color_temp"] = l.colorTemp
		attr["hs_color"] = l.hsColorLocked()
	}
	return attr
}

// Snapshot returns the current state
func (l *Light) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		ID:         l.ID(),
		UniqueID:   UniqueID(l.ID()),
		Name:       l.name,
		Kind:       l.kind,
		On:         l.on,
		Attributes: l.attributesLocked(),
		UpdatedAt:  l.updated,
	}
}

// miredsToDevice maps 153-500 mireds onto the device's 255-0 scale
func miredsToDevice(mireds int) int {
	ct := 255 - int(float64(mireds-MinMireds)*255/(MaxMireds-MinMireds))
	return clamp(ct, device.MinColorTemp, device.MaxColorTemp)
}

func hsToRGB(c HSColor) (r, g, b int) {
	hue := math.Mod(c.Hue, 360)
	if hue < 0 {
		hue += 360
	}
	col := colorful.Hsv(hue, c.Saturation/100, 1)
	return channel(col.R * 255), channel(col.G * 255), channel(col.B * 255)
}

func rgbToHS(r, g, b float64) HSColor {
	h, s, _ := colorful.Color{R: r / 255, G: g / 255, B: b / 255}.Hsv()
	return HSColor{Hue: round3(h), Saturation: round3(s * 100)}
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func channel(v float64) int {
	return clamp(int(v), 0, 255)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
