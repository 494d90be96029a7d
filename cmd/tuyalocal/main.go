// Tuyalocal controls Tuya Wi-Fi plugs, bulbs, diffusers and humidifiers
// over the local network using protocol version 3.1.
//
// Devices are listed in a YAML registry (id, host, local key, type) and
// controlled directly over TCP port 6668, without the vendor cloud:
//
//   - Discover devices announcing themselves on the LAN
//   - Switch outlets and lights, set brightness, colour and timers
//   - Watch live device state in a terminal dashboard
//   - Run a WebSocket bridge that exposes state and accepts commands
//
// See 'tuyalocal --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/tuyalocal/internal/config"
	"github.com/muurk/tuyalocal/internal/logging"
	"github.com/muurk/tuyalocal/internal/version"
)

// Global flags
var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

var rootCmd = &cobra.Command{
	Use:   "tuyalocal",
	Short: "Local control of Tuya protocol 3.1 devices",
	Long: `Control Tuya-based Wi-Fi plugs, bulbs, diffusers and humidifiers over the
local network, without the vendor cloud.

Devices must be added to the registry with their local key before they can be
controlled. Use 'tuyalocal scan' to find device ids and addresses.`,
	Version: version.Version,
	Example: `  # Find devices on the network
  tuyalocal scan

  # Register a bulb
  tuyalocal devices add bf1234567890abcd --name "Desk Lamp" --host 192.168.1.42 --key 0123456789abcdef --type bulb

  # Switch it on at half brightness
  tuyalocal brightness "Desk Lamp" 128

  # Live dashboard of every registered device
  tuyalocal watch

  # Run the WebSocket bridge
  tuyalocal serve --log-level info`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the device registry (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tuyalocal %s\n", version.Full())
	},
}

// loadRegistry reads the registry named by --config, or the default one
func loadRegistry() (*config.Registry, error) {
	reg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load device registry: %w", err)
	}
	return reg, nil
}
