package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/tuyalocal/internal/discovery"
	"github.com/muurk/tuyalocal/internal/ui"
)

// Discovery command flags
var (
	scanTimeout   int
	scanUpdate    bool
	bridgeTimeout int
)

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default: discover_time preference)")
	scanCmd.Flags().BoolVar(&scanUpdate, "update", false, "Record the address of registered devices that were seen")

	bridgesCmd.Flags().IntVar(&bridgeTimeout, "timeout", 5, "Browse timeout in seconds")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(bridgesCmd)
}

// scanCmd discovers devices on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for devices on the network",
	Long: `Scan for devices by listening for the UDP announcements they broadcast
on port 6666 every few seconds.

Announcements carry the device id, address and protocol version but not the
local key. Devices already in the registry are marked as configured.`,
	Example: `  # Scan for 10 seconds (default)
  tuyalocal scan

  # Quick 3-second scan
  tuyalocal scan --timeout 3

  # Refresh the addresses of registered devices
  tuyalocal scan --update`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	timeout := time.Duration(scanTimeout) * time.Second
	if timeout <= 0 {
		timeout = reg.Preferences.DiscoverTime
	}
	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
	}

	known := make(map[string]bool, len(reg.Devices))
	for _, id := range reg.DeviceIDs() {
		known[id] = true
	}

	scan := func(found func(*discovery.Device)) ([]*discovery.Device, error) {
		scanner := discovery.NewScanner()
		scanner.Timeout = timeout
		scanner.Found = found
		return scanner.ScanForDevicesWithContext(cmd.Context())
	}

	var devices []*discovery.Device
	if ui.IsTerminal(os.Stdout) {
		devices, err = ui.RunScan(scan, timeout, known)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Scanning for devices (timeout: %s)...\n\n", timeout)
		devices, err = scan(func(d *discovery.Device) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderDiscoveredDevice(d, known[d.ID]))
		})
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if len(devices) == 0 {
		p.PrintWarning("No devices found", nil)
		p.Println(ui.MutedStyle.Render("  Ensure devices are powered on and on the same subnet, and that UDP port 6666 is not blocked."))
		return nil
	}

	updated := 0
	if scanUpdate {
		for _, d := range devices {
			if reg.UpdateDeviceLastSeen(d.ID, d.IP, d.Version) {
				updated++
			}
		}
		if updated > 0 {
			if err := reg.Save(); err != nil {
				return fmt.Errorf("failed to save registry: %w", err)
			}
		}
	}

	details := map[string]string{
		"Found":      fmt.Sprintf("%d", len(devices)),
		"Configured": fmt.Sprintf("%d", countKnown(devices, known)),
	}
	if scanUpdate {
		details["Updated"] = fmt.Sprintf("%d", updated)
	}
	p.PrintSuccess("Scan complete", details)
	return nil
}

func countKnown(devices []*discovery.Device, known map[string]bool) int {
	n := 0
	for _, d := range devices {
		if known[d.ID] {
			n++
		}
	}
	return n
}

// bridgesCmd lists bridge servers advertised via mDNS
var bridgesCmd = &cobra.Command{
	Use:   "bridges",
	Short: "Find tuyalocal bridge servers on the network",
	Long:  `Browse mDNS for bridge servers started with 'tuyalocal serve'.`,
	Example: `  # Browse for 5 seconds (default)
  tuyalocal bridges

  # Browse longer on busy networks
  tuyalocal bridges --timeout 15`,
	Args: cobra.NoArgs,
	RunE: runBridges,
}

func runBridges(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Browsing for bridges (timeout: %ds)...\n\n", bridgeTimeout)

	bridges, err := discovery.BrowseBridges(cmd.Context(), time.Duration(bridgeTimeout)*time.Second)
	if err != nil {
		return fmt.Errorf("browse failed: %w", err)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if len(bridges) == 0 {
		p.PrintWarning("No bridges found", nil)
		return nil
	}
	for _, b := range bridges {
		p.Println(fmt.Sprintf("  %s %s  %s",
			ui.DeviceNameStyle.Render(b.Instance),
			b.URL(),
			ui.MutedStyle.Render(fmt.Sprintf("version=%s devices=%s", b.Metadata["version"], b.Metadata["devices"])),
		))
	}
	p.Newline()
	return nil
}
