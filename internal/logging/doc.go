// Package logging provides structured logging for probekit.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used by the probe session, the snapshot bridge and the
// command line tools.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: UART frame hex dumps, skipped notifications, websocket traffic
//   - Info: session connects and disconnects, server start and stop
//   - Warn: connection retries, dropped subscribers
//   - Error: failures that end a command
//
// # Structured Logging
//
// All log functions use structured fields:
//
//	logging.Info("Probe discovered",
//	    zap.String("serial", "10005A3C"),
//	    zap.Int16("rssi", -61),
//	)
//
// # Configuration
//
// Logging is silent by default. Set PROBEKIT_LOG_LEVEL (debug, info, warn,
// error) or call Initialize with a level:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr in zap's console format so it never mixes with
// command output on stdout.
package logging
