// Package ui provides terminal UI components for the tuyalocal CLI.
//
// This package uses Bubble Tea and Lipgloss to render terminal output.
// Most commands follow a "run once and exit" pattern through Printer:
//
//   - Header: command banner showing operation name and parameters
//   - Result: success/failure/warning boxes with troubleshooting tips
//   - RenderDeviceTable: one line per device with its state and attributes
//
// Two commands are interactive Bubble Tea programs:
//
//   - ScanModel (tuyalocal scan): spinner, countdown bar and the devices
//     found so far
//   - WatchModel (tuyalocal watch): live dashboard fed by the bridge hub,
//     with keys to toggle power, change brightness and request a status
//
// # Logging Integration
//
// This package expects logging to be controlled via the TUYALOCAL_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly.
package ui
