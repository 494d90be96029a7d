// Package logging provides structured logging for tuyalocal.
//
// This package wraps a global zap logger with convenience functions. Logging
// is silent by default so CLI output stays clean; set TUYALOCAL_LOG_LEVEL or
// pass --log-level to enable it.
//
// # Log Levels
//
//   - Debug: Frame hex dumps, decoded payloads, listener reads
//   - Info: Connections, device state received, listener start/stop
//   - Warn: Send retries, decode failures, connect failures
//   - Error: Exhausted retries, listener restarts
//
// # Structured Logging
//
//	logging.Info("Device state received",
//	    zap.String("addr", "192.168.1.42"),
//	    zap.String("device_id", "bf1234567890abcd"),
//	)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr in zap's console encoding.
package logging
