package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/tuyalocal/internal/config"
	"github.com/muurk/tuyalocal/internal/ui"
)

// Registry command flags
var (
	addName string
	addHost string
	addKey  string
	addType string
	addPort int
	forceRm bool
)

func init() {
	addCmd.Flags().StringVar(&addName, "name", "", "Friendly device name")
	addCmd.Flags().StringVar(&addHost, "host", "", "Device IP address or hostname (required)")
	addCmd.Flags().StringVar(&addKey, "key", "", "16-character local key (prompted for when omitted)")
	addCmd.Flags().StringVar(&addType, "type", "switch", "Device type (switch, diffuser, humidifier, dimmer, bulb)")
	addCmd.Flags().IntVar(&addPort, "port", 0, "Control port (default 6668)")
	_ = addCmd.MarkFlagRequired("host")

	removeCmd.Flags().BoolVarP(&forceRm, "yes", "y", false, "Remove without asking for confirmation")

	devicesCmd.AddCommand(addCmd)
	devicesCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(devicesCmd)
}

// devicesCmd lists the registry
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List registered devices",
	Long: `List the devices in the registry.

This does not contact the devices; use 'tuyalocal status' for live state.`,
	Example: `  # List devices in the default registry
  tuyalocal devices

  # List devices in another registry file
  tuyalocal devices --config ./lab.yaml`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("REGISTERED DEVICES", "tuyalocal devices", map[string]string{
		"Registry": registryLocation(reg),
	})

	ids := reg.DeviceIDs()
	if len(ids) == 0 {
		p.Println(ui.MutedStyle.Render("  No devices configured. Add one with 'tuyalocal devices add'."))
		return nil
	}
	for _, id := range ids {
		p.Println(renderRegistryRow(id, reg.GetDevice(id)))
	}
	p.Newline()
	return nil
}

func renderRegistryRow(id string, d *config.Device) string {
	seen := "never seen"
	if !d.LastSeen.IsZero() {
		seen = "seen " + d.LastSeen.Format(time.DateTime)
	}
	return fmt.Sprintf("  %s %s  %-15s %s",
		ui.DeviceNameStyle.Render(fmt.Sprintf("%-20s", d.DisplayName(id))),
		ui.MutedStyle.Render(id),
		d.Host,
		ui.MutedStyle.Render(fmt.Sprintf("%-10s %s", d.Kind(), seen)),
	)
}

func registryLocation(reg *config.Registry) string {
	if reg.Path() != "" {
		return reg.Path()
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return "(unknown)"
	}
	return path
}

// addCmd registers a device
var addCmd = &cobra.Command{
	Use:   "add <device-id>",
	Short: "Add or replace a device in the registry",
	Long: `Add a device to the registry, or replace the entry with the same id.

The local key is the 16-character AES key the device was paired with. It is
stored in plain text in the registry, which is written with user-only permissions.
When --key is omitted the key is asked for without echoing it.`,
	Example: `  # Add a smart plug
  tuyalocal devices add 012345678901234567ab --host 192.168.1.40 --key 0123456789abcdef

  # Add an RGB bulb with a name
  tuyalocal devices add bf1234567890abcd --name "Desk Lamp" --host 192.168.1.42 \
    --key 0123456789abcdef --type bulb`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	id := args[0]
	key := addKey
	if key == "" {
		if !ui.IsTerminal(os.Stdin) {
			return fmt.Errorf("--key is required when not running in a terminal")
		}
		if key, err = ui.PromptLocalKey(id); err != nil {
			return err
		}
	}

	d := &config.Device{
		Name:     addName,
		Host:     addHost,
		Port:     addPort,
		LocalKey: key,
		Type:     addType,
	}
	if existing := reg.GetDevice(id); existing != nil {
		d.Version = existing.Version
		d.LastSeen = existing.LastSeen
	}
	if err := reg.SetDevice(id, d); err != nil {
		return err
	}
	if err := reg.Save(); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintSuccess("Device saved", map[string]string{
		"ID":       id,
		"Name":     d.DisplayName(id),
		"Host":     d.Host,
		"Type":     string(d.Kind()),
		"Registry": registryLocation(reg),
	})
	return nil
}

// removeCmd deletes a device
var removeCmd = &cobra.Command{
	Use:     "remove <device>",
	Aliases: []string{"rm"},
	Short:   "Remove a device from the registry",
	Example: `  # Remove by name, asking first
  tuyalocal devices remove "Desk Lamp"

  # Remove by id without asking
  tuyalocal devices remove bf1234567890abcd --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	id, d, ok := reg.FindDevice(args[0])
	if !ok {
		return fmt.Errorf("device %q is not in the registry", args[0])
	}

	if !forceRm && !ui.Confirm(os.Stdin, cmd.OutOrStdout(), fmt.Sprintf("Remove %s (%s)?", d.DisplayName(id), id)) {
		return nil
	}

	reg.RemoveDevice(id)
	if err := reg.Save(); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}

	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Device removed", map[string]string{
		"ID":   id,
		"Name": d.DisplayName(id),
	})
	return nil
}
