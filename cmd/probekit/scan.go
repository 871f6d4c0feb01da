package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/probekit/internal/discovery"
	"github.com/muurk/probekit/internal/manager"
	"github.com/muurk/probekit/internal/probe"
	"github.com/muurk/probekit/internal/ui"
)

var (
	scanTimeout    time.Duration
	monitorPlain   bool
	bridgesTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(bridgesCmd)

	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "Scan duration (default from config, 10s)")
	monitorCmd.Flags().BoolVar(&monitorPlain, "plain", false, "Print one line per event even on a terminal")
	bridgesCmd.Flags().DurationVar(&bridgesTimeout, "timeout", 5*time.Second, "How long to listen for bridges")
}

func newManager() *manager.Manager {
	return manager.New(manager.WithProbeOptions(prefs().ProbeOptions()...))
}

// rememberProbes records every probe's transport identity so later
// commands can connect without scanning first
func rememberProbes(m *manager.Manager) {
	changed := false
	for _, st := range m.Snapshots() {
		if st.Identity == "" {
			continue
		}
		registry.UpdateProbeLastSeen(st.Serial, st.Identity, st.LastUpdate)
		changed = true
	}
	if changed {
		saveConfigQuietly()
	}
}

// scanCmd lists probes in range
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for probes in range",
	Long: `Listen for probe advertisements for a fixed time and print a table of
every probe heard, with its latest temperatures, battery and signal strength.`,
	Example: `  # Scan for 10 seconds (default)
  probekit scan

  # Quick 3-second scan in Fahrenheit
  probekit scan --timeout 3s -F

  # JSON output for scripting
  probekit scan --format json`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	timeout := scanTimeout
	if timeout <= 0 {
		timeout = prefs().ScanTimeout
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	ctx, cancelScan := context.WithTimeout(ctx, timeout)
	defer cancelScan()

	p := ui.NewPrinter(cmd.OutOrStdout())
	if !jsonOutput() {
		p.Println(ui.StatusLineStyle.Render(fmt.Sprintf("Scanning for probes (timeout: %s)...", timeout)))
		p.Newline()
	}

	m := newManager()
	defer m.Close()
	if err := m.Run(ctx, newAdapter()); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	rememberProbes(m)

	rows := ui.Rows(m.Snapshots(), nicknames)
	if jsonOutput() {
		return p.PrintJSON(rows)
	}
	if len(rows) == 0 {
		p.PrintWarning("No probes found")
		p.Println("  - Take the probe out of its charger to wake it")
		p.Println("  - Check that Bluetooth is enabled (--adapter to pick a controller)")
		p.Println("  - Try increasing --timeout")
		return nil
	}
	p.PrintProbeTable(rows, unit())
	return nil
}

// monitorCmd shows live readings until interrupted
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch probes live",
	Long: `Scan continuously and show live probe readings.

On a terminal this opens a full-screen dashboard. When output is piped, or
with --plain, one line is printed per probe event instead.`,
	Example: `  # Full-screen dashboard
  probekit monitor

  # Event log for piping into other tools
  probekit monitor --format json | jq .`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	m := newManager()
	defer m.Close()
	defer rememberProbes(m)

	sub := m.Subscribe(256)
	defer sub.Close()

	scanErr := make(chan error, 1)
	go func() {
		scanErr <- m.Run(ctx, newAdapter())
	}()

	if ui.IsTerminal() && !monitorPlain && !jsonOutput() {
		sub.Close()
		err := ui.RunDashboard(ctx, ui.NewDashboard(ui.DashboardConfig{
			Source:    m,
			Nicknames: nicknames,
			Unit:      unit(),
		}))
		cancel()
		return errors.Join(err, <-scanErr)
	}

	out := cmd.OutOrStdout()
	for {
		select {
		case err := <-scanErr:
			return err
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := printEvent(out, ev); err != nil {
				return err
			}
		}
	}
}

func printEvent(out io.Writer, ev probe.Event) error {
	if jsonOutput() {
		return json.NewEncoder(out).Encode(ev)
	}
	st := ev.Snapshot
	name := st.Serial
	if nick := nicknames(st.Serial); nick != "" {
		name += " (" + nick + ")"
	}
	_, err := fmt.Fprintf(out, "%s %-11s %s core=%s surface=%s ambient=%s rssi=%s\n",
		ev.At.Format("15:04:05"), ev.Kind, name,
		ui.FormatTemperature(st.Virtual.Core, unit()),
		ui.FormatTemperature(st.Virtual.Surface, unit()),
		ui.FormatTemperature(st.Virtual.Ambient, unit()),
		ui.FormatRSSI(st.RSSI),
	)
	return err
}

// bridgesCmd finds other probekit bridges on the network
var bridgesCmd = &cobra.Command{
	Use:   "bridges",
	Short: "Find probekit bridges on the local network",
	Long: `Browse mDNS for machines running 'probekit serve' and print their
HTTP and websocket addresses.`,
	Args: cobra.NoArgs,
	RunE: runBridges,
}

func runBridges(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	p := ui.NewPrinter(cmd.OutOrStdout())
	if !jsonOutput() {
		p.Println(ui.StatusLineStyle.Render(fmt.Sprintf("Browsing for bridges (timeout: %s)...", bridgesTimeout)))
		p.Newline()
	}

	bridges, err := discovery.Browse(ctx, bridgesTimeout)
	if err != nil {
		return fmt.Errorf("browse failed: %w", err)
	}

	if jsonOutput() {
		type bridgeView struct {
			Instance  string            `json:"instance"`
			Hostname  string            `json:"hostname"`
			URL       string            `json:"url"`
			WebSocket string            `json:"websocket"`
			Metadata  map[string]string `json:"metadata,omitempty"`
		}
		views := make([]bridgeView, 0, len(bridges))
		for _, b := range bridges {
			views = append(views, bridgeView{b.Instance, b.Hostname, b.BaseURL(), b.WebSocketURL(), b.Metadata})
		}
		return p.PrintJSON(views)
	}

	if len(bridges) == 0 {
		p.PrintWarning("No bridges found")
		return nil
	}
	for _, b := range bridges {
		details := []ui.Param{
			{Key: "Host", Value: b.Hostname},
			{Key: "HTTP", Value: b.BaseURL() + "/probes"},
			{Key: "Websocket", Value: b.WebSocketURL()},
		}
		if v := b.GetMetadata("version"); v != "" {
			details = append(details, ui.Param{Key: "Version", Value: v})
		}
		p.PrintSuccess(b.Instance, details...)
	}
	return nil
}
