package device

import (
	"fmt"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
)

// Brightness and colour temperature limits accepted by bulbs
const (
	MinBrightness = 25
	MaxBrightness = 255
	MinColorTemp  = 0
	MaxColorTemp  = 255
)

// Bulb data points
const (
	dpsPower      = "1"
	dpsMode       = "2"
	dpsBrightness = "3"
	dpsColorTemp  = "4"
	dpsColor      = "5"
)

// Light modes reported on dps 2
const (
	ModeWhite  = "white"
	ModeColour = "colour"
)

// Bulb adds the colour and white commands of RGB bulbs and dimmers
type Bulb struct {
	*Session
}

// NewBulb creates a session for a bulb
func NewBulb(cfg Config) (*Bulb, error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Bulb{Session: s}, nil
}

func checkBrightness(b int) error {
	if b < MinBrightness || b > MaxBrightness {
		return NewValidationError("brightness must be between %d and %d, got %d", MinBrightness, MaxBrightness, b)
	}
	return nil
}

// SetBrightness turns the bulb on at brightness b (25-255)
func (b *Bulb) SetBrightness(brightness int) error {
	if err := checkBrightness(brightness); err != nil {
		return err
	}
	return b.SetDPS(map[string]any{
		dpsPower:      true,
		dpsBrightness: brightness,
	})
}

// SetWhite switches to white mode with brightness (25-255) and colour temperature (0-255)
func (b *Bulb) SetWhite(brightness, colorTemp int) error {
	if err := checkBrightness(brightness); err != nil {
		return err
	}
	if colorTemp < MinColorTemp || colorTemp > MaxColorTemp {
		return NewValidationError("colour temperature must be between %d and %d, got %d", MinColorTemp, MaxColorTemp, colorTemp)
	}
	return b.SetDPS(map[string]any{
		dpsPower:      true,
		dpsMode:       ModeWhite,
		dpsBrightness: brightness,
		dpsColorTemp:  colorTemp,
	})
}

// SetColor switches to colour mode. Brightness is premultiplied into the
// channels of the colour value and also sent as the brightness data point,
// so it must be within MinBrightness..MaxBrightness like SetBrightness.
func (b *Bulb) SetColor(r, g, bl, brightness int) error {
	for _, ch := range []struct {
		name string
		v    int
	}{{"red", r}, {"green", g}, {"blue", bl}} {
		if ch.v < 0 || ch.v > 255 {
			return NewValidationError("%s must be between 0 and 255, got %d", ch.name, ch.v)
		}
	}
	if err := checkBrightness(brightness); err != nil {
		return err
	}
	return b.SetDPS(map[string]any{
		dpsPower:      true,
		dpsMode:       ModeColour,
		dpsBrightness: brightness,
		dpsColor:      ColorHex(r, g, bl, brightness),
	})
}

// ColorHex encodes a colour as the 14 hex digit dps 5 value:
// rrggbb of the brightness-scaled channels, then hhhh ss vv of the same
// colour in HSV (hue in degrees, saturation and value scaled to 255).
func ColorHex(r, g, b, brightness int) string {
	rf := float64(r*brightness) / 255
	gf := float64(g*brightness) / 255
	bf := float64(b*brightness) / 255

	h, s, v := colorful.Color{R: rf / 255, G: gf / 255, B: bf / 255}.Hsv()

	return fmt.Sprintf("%02x%02x%02x%04x%02x%02x",
		int(rf), int(gf), int(bf),
		int(h), int(s*255), int(v*255))
}

// ParseColorHex reads the rrggbb part of a dps 5 value and undoes the
// brightness scaling. It returns false if the value is malformed or brightness is zero.
func ParseColorHex(value string, brightness int) (r, g, b float64, ok bool) {
	if len(value) < 6 || brightness <= 0 {
		return 0, 0, 0, false
	}
	var ch [3]float64
	for i := range ch {
		n, err := strconv.ParseUint(value[i*2:i*2+2], 16, 8)
		if err != nil {
			return 0, 0, 0, false
		}
		ch[i] = float64(n) * 255 / float64(brightness)
	}
	return ch[0], ch[1], ch[2], true
}
