// Package ui renders probekit's terminal output.
//
// Two styles of output are provided:
//
//   - Dashboard: a Bubble Tea model that refreshes a table of live probes
//     on a tick, with a scanning spinner and key help.
//   - Printer: "run once and exit" output for commands, built from the
//     same Lipgloss styles (headers, result boxes, probe tables).
//
// # Dashboard Keys
//
//	u   toggle °C/°F
//	s   show or hide stale probes
//	?   full help
//	q   quit
//
// # Logging Integration
//
// This package expects logging to be controlled via the PROBEKIT_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the dashboard to own the terminal. Set PROBEKIT_LOG_LEVEL to "debug",
// "info", "warn", or "error" to enable logging output.
package ui
