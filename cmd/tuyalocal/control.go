package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/tuyalocal/internal/bridge"
	"github.com/muurk/tuyalocal/internal/device"
	"github.com/muurk/tuyalocal/internal/entity"
	"github.com/muurk/tuyalocal/internal/ui"
)

// Control command flags
var (
	replyWait       time.Duration
	colorBrightness int
	whiteBrightness int
	whiteMireds     int
)

func init() {
	for _, c := range []*cobra.Command{statusCmd, onCmd, offCmd, brightnessCmd, colorCmd, whiteCmd, timerCmd, mistCmd} {
		c.Flags().DurationVar(&replyWait, "wait", 3*time.Second, "How long to wait for the device to report its state")
		rootCmd.AddCommand(c)
	}

	colorCmd.Flags().IntVar(&colorBrightness, "brightness", -1, "Brightness 25-255 (default: keep current)")
	whiteCmd.Flags().IntVar(&whiteBrightness, "brightness", -1, "Brightness 25-255 (default: keep current)")
	whiteCmd.Flags().IntVar(&whiteMireds, "mireds", 250, "Colour temperature in mireds (153 cold to 500 warm)")
}

var statusCmd = &cobra.Command{
	Use:   "status <device>",
	Short: "Show the live state of a device",
	Example: `  # By name or id
  tuyalocal status "Desk Lamp"
  tuyalocal status bf1234567890abcd`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, args[0], bridge.Command{Action: bridge.ActionStatus})
	},
}

var onCmd = &cobra.Command{
	Use:     "on <device>",
	Short:   "Switch a device on",
	Example: `  tuyalocal on "Desk Lamp"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, args[0], bridge.Command{Action: bridge.ActionOn})
	},
}

var offCmd = &cobra.Command{
	Use:     "off <device>",
	Short:   "Switch a device off",
	Example: `  tuyalocal off "Desk Lamp"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, args[0], bridge.Command{Action: bridge.ActionOff})
	},
}

var brightnessCmd = &cobra.Command{
	Use:   "brightness <device> <25-255>",
	Short: "Switch a light on at the given brightness",
	Long: `Switch a dimmer or bulb on at the given brightness.

Devices accept 25 (dimmest) to 255 (brightest).`,
	Example: `  tuyalocal brightness "Desk Lamp" 128`,
	Args:    cobra.ExactArgs(2),
	RunE:    runBrightness,
}

func runBrightness(cmd *cobra.Command, args []string) error {
	b, err := parseBrightness(args[1])
	if err != nil {
		return err
	}
	return runControl(cmd, args[0], bridge.Command{
		Action: bridge.ActionBrightness,
		Params: bridge.Params{Brightness: &b},
	})
}

var colorCmd = &cobra.Command{
	Use:   "color <device> <hue> <saturation>",
	Short: "Set the colour of an RGB bulb",
	Long: `Switch an RGB bulb to colour mode.

Hue is in degrees (0-360), saturation in percent (0-100).`,
	Example: `  # Deep orange
  tuyalocal color "Desk Lamp" 30 100

  # Pale blue, dimmed
  tuyalocal color "Desk Lamp" 210 40 --brightness 60`,
	Args: cobra.ExactArgs(3),
	RunE: runColor,
}

func runColor(cmd *cobra.Command, args []string) error {
	hue, err := parseRange(args[1], "hue", 0, 360)
	if err != nil {
		return err
	}
	sat, err := parseRange(args[2], "saturation", 0, 100)
	if err != nil {
		return err
	}
	params := bridge.Params{Hue: &hue, Saturation: &sat}
	if colorBrightness >= 0 {
		params.Brightness = &colorBrightness
	}
	return runControl(cmd, args[0], bridge.Command{Action: bridge.ActionColor, Params: params})
}

var whiteCmd = &cobra.Command{
	Use:   "white <device>",
	Short: "Switch an RGB bulb to white mode",
	Example: `  # Warm white
  tuyalocal white "Desk Lamp" --mireds 450

  # Cold white at full brightness
  tuyalocal white "Desk Lamp" --mireds 153 --brightness 255`,
	Args: cobra.ExactArgs(1),
	RunE: runWhite,
}

func runWhite(cmd *cobra.Command, args []string) error {
	params := bridge.Params{ColorTemp: &whiteMireds}
	if whiteBrightness >= 0 {
		params.Brightness = &whiteBrightness
	}
	return runControl(cmd, args[0], bridge.Command{Action: bridge.ActionWhite, Params: params})
}

var timerCmd = &cobra.Command{
	Use:   "timer <device> <duration>",
	Short: "Set the countdown timer of a device",
	Long: `Set the countdown after which the device toggles its power.

The duration is a number of seconds or a Go duration such as 90s, 15m or 1h30m.
A duration of 0 cancels the timer.`,
	Example: `  tuyalocal timer "Fan Plug" 30m
  tuyalocal timer "Fan Plug" 0`,
	Args: cobra.ExactArgs(2),
	RunE: runTimer,
}

func runTimer(cmd *cobra.Command, args []string) error {
	seconds, err := parseSeconds(args[1])
	if err != nil {
		return err
	}
	return runControl(cmd, args[0], bridge.Command{
		Action: bridge.ActionTimer,
		Params: bridge.Params{Seconds: &seconds},
	})
}

var mistCmd = &cobra.Command{
	Use:       "mist <device> <continuous|intermittent|off>",
	Short:     "Set the mist mode of a diffuser",
	Example:   `  tuyalocal mist Diffuser intermittent`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(device.MistContinuous), string(device.MistIntermittent), string(device.MistOff)},
	RunE:      runMist,
}

func runMist(cmd *cobra.Command, args []string) error {
	mode := strings.ToLower(args[1])
	if device.ParseMistMode(mode) == device.MistOff && mode != string(device.MistOff) {
		return fmt.Errorf("unknown mist mode %q (want continuous, intermittent or off)", args[1])
	}
	return runControl(cmd, args[0], bridge.Command{
		Action: bridge.ActionMist,
		Params: bridge.Params{Mode: mode},
	})
}

// runControl connects to one registered device, sends command and prints
// the state the device reports back
func runControl(cmd *cobra.Command, name string, command bridge.Command) error {
	cmd.SilenceUsage = true
	p := ui.NewPrinter(cmd.OutOrStdout())

	hub, id, err := openHub(name)
	if err != nil {
		p.PrintError("Device unavailable", err, nil)
		return err
	}
	defer hub.Close()

	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	command.Device = id
	res, err := hub.Execute(command)
	if err != nil {
		p.PrintError(fmt.Sprintf("Command %q failed", command.Action), err, nil)
		return fmt.Errorf("%s %s: %w", command.Action, name, err)
	}

	snap, ok := awaitState(events, id, replyWait)
	if !ok {
		details := map[string]string{"Device": id, "Action": string(command.Action)}
		if res.State != nil {
			details["Last known"] = ui.FormatAttributes(res.State.Attributes)
		}
		p.PrintWarning("Command sent, no state reported", details)
		return nil
	}

	details := map[string]string{
		"Device": fmt.Sprintf("%s (%s)", snap.Name, snap.ID),
		"Kind":   string(snap.Kind),
		"Power":  onOff(snap.On),
	}
	if attrs := ui.FormatAttributes(snap.Attributes); attrs != "" {
		details["Attributes"] = attrs
	}
	p.PrintSuccess(resultTitle(command.Action), details)
	return nil
}

// openHub starts a hub holding only the named registry device
func openHub(name string) (*bridge.Hub, string, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, "", err
	}
	id, d, ok := reg.FindDevice(name)
	if !ok {
		return nil, "", fmt.Errorf("device %q is not in the registry", name)
	}

	e, err := entity.New(d.Kind(), d.DisplayName(id), d.SessionConfig(id, reg.Preferences))
	if err != nil {
		return nil, "", err
	}
	hub := bridge.NewHub()
	if err := hub.Add(e); err != nil {
		_ = e.Close()
		return nil, "", err
	}
	return hub, id, nil
}

// awaitState waits for a reported state of device id
func awaitState(events <-chan entity.Snapshot, id string, wait time.Duration) (entity.Snapshot, bool) {
	timeout := time.NewTimer(wait)
	defer timeout.Stop()
	for {
		select {
		case snap, ok := <-events:
			if !ok {
				return entity.Snapshot{}, false
			}
			if snap.ID == id {
				return snap, true
			}
		case <-timeout.C:
			return entity.Snapshot{}, false
		}
	}
}

func resultTitle(a bridge.Action) string {
	if a == bridge.ActionStatus {
		return "Device status"
	}
	return fmt.Sprintf("Command %q applied", a)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// parseBrightness accepts the device range 25-255
func parseBrightness(s string) (int, error) {
	b, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid brightness %q: must be a whole number", s)
	}
	if b < 25 || b > 255 {
		return 0, fmt.Errorf("brightness %d out of range (25-255)", b)
	}
	return b, nil
}

func parseRange(s, what string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s %g out of range (%g-%g)", what, v, lo, hi)
	}
	return v, nil
}

// parseSeconds accepts plain seconds or a duration string
func parseSeconds(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("timer cannot be negative")
		}
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: use seconds or a value like 15m", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("timer cannot be negative")
	}
	return int(d.Round(time.Second) / time.Second), nil
}
