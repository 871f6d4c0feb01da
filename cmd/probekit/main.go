// Probekit talks to predictive temperature probes over Bluetooth LE.
//
// It scans for probe advertisements, shows live readings in a terminal
// dashboard, sends commands over the probe's UART service, and can run as a
// bridge that serves snapshots over HTTP, websockets and MQTT.
//
// Usage:
//
//	probekit [command] [flags]
//
// See 'probekit --help' for available commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/probekit/internal/ble"
	"github.com/muurk/probekit/internal/config"
	"github.com/muurk/probekit/internal/logging"
	"github.com/muurk/probekit/internal/ui"
	"github.com/muurk/probekit/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

// Global flags
var (
	logLevel     string
	adapterName  string
	configPath   string
	outputFormat string
	fahrenheit   bool
)

// registry is loaded before every command runs
var registry *config.Registry

var rootCmd = &cobra.Command{
	Use:   "probekit",
	Short: "Predictive temperature probe toolkit",
	Long: `A command-line toolkit for predictive temperature probes.

Scans for probes over Bluetooth LE, decodes their advertisements and status
notifications, sends commands (ID, colour, prediction, alarms), and bridges
live readings to HTTP, websocket and MQTT clients.

Probe nicknames and preferences are kept in a YAML config file; see
'probekit nickname' and the config file comments for details.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config and "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&adapterName, "adapter", "", "Bluetooth controller (default from config, then "+ble.DefaultAdapterName+")")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default is the platform config directory)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&fahrenheit, "fahrenheit", "F", false, "Show and accept temperatures in °F")

	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	reg, err := loadConfig()
	if err != nil {
		return err
	}
	registry = reg

	level := logLevel
	if level == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		level = registry.Preferences.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	switch outputFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown --format %q (expected text or json)", outputFormat)
	}
	return nil
}

func loadConfig() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.GetGlobalRegistry()
}

func saveConfig() error {
	if configPath != "" {
		return registry.SaveTo(configPath)
	}
	return registry.Save()
}

// saveConfigQuietly persists bookkeeping (last seen, identities) where a
// failure should not fail the command
func saveConfigQuietly() {
	if err := saveConfig(); err != nil {
		logging.Warn("Failed to save config", zap.Error(err))
	}
}

func prefs() *config.Preferences {
	return registry.Preferences
}

func newAdapter() *ble.Adapter {
	name := adapterName
	if name == "" {
		name = prefs().Adapter
	}
	if name == "" {
		name = ble.DefaultAdapterName
	}
	return ble.NewAdapter(name)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func nicknames(serial string) string {
	return registry.Nickname(serial)
}

func unit() ui.Unit {
	if fahrenheit {
		return ui.Fahrenheit
	}
	return ui.Celsius
}

func jsonOutput() bool {
	return outputFormat == "json"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput() {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(version.Get())
		}
		info := version.Get()
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "probekit %s (commit: %s, %s, %s)\n",
			info.Version, info.Commit, info.GoVersion, info.Platform)
		return err
	},
}
