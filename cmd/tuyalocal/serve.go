package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/tuyalocal/internal/bridge"
	"github.com/muurk/tuyalocal/internal/logging"
	"github.com/muurk/tuyalocal/internal/server"
	"github.com/muurk/tuyalocal/internal/ui"
)

// Bridge command flags
var (
	listenAddr  string
	noAdvertise bool
	instance    string
)

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default: listen_addr preference, \":8668\")")
	serveCmd.Flags().BoolVar(&noAdvertise, "no-advertise", false, "Do not advertise the bridge via mDNS")
	serveCmd.Flags().StringVar(&instance, "instance", "", "mDNS instance name (default: tuyalocal)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket bridge",
	Long: `Connect to every registered device and expose them over HTTP and WebSocket.

Endpoints:
  GET  /api/devices                 current state of every device
  GET  /api/devices/{id}            state of one device (id or name)
  POST /api/devices/{id}/commands   send a command
  GET  /ws                          state events and commands over WebSocket

Devices are polled for their status every poll_interval. The bridge is
advertised on mDNS as _tuyalocal._tcp unless disabled.`,
	Example: `  # Serve on the default address
  tuyalocal serve

  # Custom address with logging
  tuyalocal serve --listen 127.0.0.1:9000 --log-level debug

  # Without mDNS
  tuyalocal serve --no-advertise`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if len(reg.Devices) == 0 {
		return fmt.Errorf("no devices configured; add one with 'tuyalocal devices add'")
	}

	hub, err := bridge.FromRegistry(reg)
	if err != nil {
		return fmt.Errorf("failed to start devices: %w", err)
	}
	defer hub.Close()

	cfg := &server.Config{
		ListenAddr: reg.Preferences.ListenAddr,
		Advertise:  reg.Preferences.Advertise && !noAdvertise,
		Instance:   instance,
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	srv := server.New(cfg, hub)
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	poller := bridge.NewPoller(hub, reg.Preferences.PollInterval)
	go poller.Run(ctx)

	logging.Info("Bridge ready",
		zap.String("addr", srv.Addr().String()),
		zap.Int("devices", len(hub.Entities())),
		zap.Duration("poll_interval", poller.Interval()),
	)
	fmt.Fprintf(os.Stderr, "Serving %d device(s) on %s (Ctrl+C to stop)\n", len(hub.Entities()), srv.Addr())

	return srv.Run(ctx)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of every registered device",
	Long: `Connect to every registered device and show its state as it changes.

Keys: up/down select, enter toggles power, +/- change brightness,
r polls every device, q quits.`,
	Example: `  tuyalocal watch`,
	Args:    cobra.NoArgs,
	RunE:    runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if !ui.IsTerminal(os.Stdout) {
		return fmt.Errorf("watch needs an interactive terminal; use 'tuyalocal status' instead")
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	hub, err := bridge.FromRegistry(reg)
	if err != nil {
		return fmt.Errorf("failed to start devices: %w", err)
	}
	defer hub.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go bridge.NewPoller(hub, reg.Preferences.PollInterval).Run(ctx)

	return ui.RunWatch(hub)
}
