package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/probekit/internal/ble"
	"github.com/muurk/probekit/internal/logging"
	"github.com/muurk/probekit/internal/probe"
	"github.com/muurk/probekit/internal/probedata"
	"github.com/muurk/probekit/internal/protocol"
	"github.com/muurk/probekit/internal/transport"
	"github.com/muurk/probekit/internal/ui"
)

// Command flags
var (
	predictionMode string
	resetYes       bool
	logsWait       time.Duration
)

func init() {
	rootCmd.AddCommand(setIDCmd)
	rootCmd.AddCommand(setColorCmd)
	rootCmd.AddCommand(setPredictionCmd)
	rootCmd.AddCommand(cancelPredictionCmd)
	rootCmd.AddCommand(silenceCmd)
	rootCmd.AddCommand(sessionInfoCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(nicknameCmd)

	setPredictionCmd.Flags().StringVar(&predictionMode, "mode", "removal", "Prediction mode (removal, resting)")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Skip the confirmation prompt")
	logsCmd.Flags().DurationVar(&logsWait, "wait", 30*time.Second, "How long to wait for records to arrive")
}

var commandTroubleshooting = []string{
	"Make sure the probe is out of its charger and in range",
	"Run 'probekit scan' to confirm the probe is advertising",
	"Disconnect the probe from other apps; it accepts one connection",
}

// locate finds the transport identity for serial. A remembered identity is
// used as-is; otherwise the probe must be heard advertising.
func locate(ctx context.Context, adapter *ble.Adapter, serial uint32) (string, *probe.Probe, error) {
	key := protocol.FormatSerial(serial)
	if meta := registry.GetProbe(key); meta != nil && meta.LastIdentity != "" {
		logging.Debug("Using remembered identity",
			zap.String("serial", key),
			zap.String("identity", meta.LastIdentity),
		)
		return meta.LastIdentity, probe.New(serial, prefs().ProbeOptions()...), nil
	}

	scanCtx, cancel := context.WithTimeout(ctx, prefs().ScanTimeout)
	defer cancel()

	m := newManager()
	type sighting struct {
		identity string
		probe    *probe.Probe
	}
	found := make(chan sighting, 1)
	err := adapter.Scan(scanCtx, func(a transport.Advertisement) {
		p, err := m.HandleAdvertisement(a)
		if err != nil || p == nil || p.Serial() != serial {
			return
		}
		select {
		case found <- sighting{a.Identity, p}:
			cancel()
		default:
		}
	})

	select {
	case s := <-found:
		return s.identity, s.probe, nil
	default:
	}
	if err != nil && ctx.Err() == nil && scanCtx.Err() == nil {
		return "", nil, fmt.Errorf("scan failed: %w", err)
	}
	if ctx.Err() != nil {
		return "", nil, ctx.Err()
	}
	return "", nil, protocol.NewError(protocol.ErrTypeProbeNotFound, "probe %s not heard within %s", key, prefs().ScanTimeout)
}

// withSession connects to the probe named by serialArg, runs fn, and
// disconnects.
func withSession(cmd *cobra.Command, serialArg string, fn func(ctx context.Context, s *probe.Session, p *ui.Printer) error) error {
	serial, err := protocol.ParseSerial(serialArg)
	if err != nil {
		return err
	}
	key := protocol.FormatSerial(serial)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	adapter := newAdapter()

	identity, pr, err := locate(ctx, adapter, serial)
	if err != nil {
		printer.PrintError("Probe "+key+" not found", err, commandTroubleshooting...)
		return err
	}

	s := probe.NewSession(pr, adapter, identity, prefs().SessionConfig())
	if err := s.Connect(ctx); err != nil {
		printer.PrintError("Connect to "+key+" failed", err, commandTroubleshooting...)
		return err
	}
	defer func() {
		if err := s.Disconnect(); err != nil {
			logging.Warn("Disconnect failed", zap.String("serial", key), zap.Error(err))
		}
	}()

	registry.UpdateProbeLastSeen(key, identity, time.Now())
	saveConfigQuietly()

	return fn(ctx, s, printer)
}

func probeParam(s *probe.Session) ui.Param {
	key := protocol.FormatSerial(s.Probe().Serial())
	if nick := nicknames(key); nick != "" {
		key += " (" + nick + ")"
	}
	return ui.Param{Key: "Probe", Value: key}
}

var setIDCmd = &cobra.Command{
	Use:     "set-id <serial> <1-8>",
	Short:   "Set a probe's ID",
	Example: `  probekit set-id 10001234 3`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < int(probedata.MinProbeID) || n > int(probedata.MaxProbeID) {
			return fmt.Errorf("probe ID must be between %d and %d, got %q", probedata.MinProbeID, probedata.MaxProbeID, args[1])
		}
		id := probedata.ProbeID(n)
		return withSession(cmd, args[0], func(ctx context.Context, s *probe.Session, p *ui.Printer) error {
			if err := s.SetID(ctx, id); err != nil {
				p.PrintError("Set ID failed", err)
				return err
			}
			p.PrintSuccess("Probe ID set", probeParam(s), ui.Param{Key: "ID", Value: strconv.Itoa(n)})
			return nil
		})
	},
}

var setColorCmd = &cobra.Command{
	Use:   "set-color <serial> <color>",
	Short: "Set a probe's colour",
	Long: `Set the colour a probe reports. Colours: yellow, grey, red, orange,
blue, green, purple, pink.`,
	Example: `  probekit set-color 10001234 blue`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		color, err := probedata.ParseProbeColor(args[1])
		if err != nil {
			return err
		}
		return withSession(cmd, args[0], func(ctx context.Context, s *probe.Session, p *ui.Printer) error {
			if err := s.SetColor(ctx, color); err != nil {
				p.PrintError("Set colour failed", err)
				return err
			}
			p.PrintSuccess("Probe colour set", probeParam(s), ui.Param{Key: "Colour", Value: color.String()})
			return nil
		})
	},
}

func parsePredictionMode(s string) (probedata.PredictionMode, error) {
	switch strings.ToLower(s) {
	case "removal", "time-to-removal":
		return probedata.PredictionModeTimeToRemoval, nil
	case "resting", "removal-and-resting":
		return probedata.PredictionModeRemovalAndResting, nil
	default:
		return 0, fmt.Errorf("unknown prediction mode %q (expected removal or resting)", s)
	}
}

var setPredictionCmd = &cobra.Command{
	Use:   "set-prediction <serial> <temperature>",
	Short: "Start a prediction toward a core set point",
	Long: `Start a prediction. The probe estimates when the core will reach the
set point. The temperature is in °C, or °F with --fahrenheit.`,
	Example: `  # Pull a steak at 54°C
  probekit set-prediction 10001234 54

  # Brisket to 203°F including resting
  probekit set-prediction 10001234 203 -F --mode resting`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := parsePredictionMode(predictionMode)
		if err != nil {
			return err
		}
		temp, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q: %w", args[1], err)
		}
		setPoint := temp
		if fahrenheit {
			setPoint = probedata.FahrenheitToCelsius(temp)
		}
		return withSession(cmd, args[0], func(ctx context.Context, s *probe.Session, p *ui.Printer) error {
			if err := s.SetPrediction(ctx, mode, setPoint); err != nil {
				p.PrintError("Set prediction failed", err)
				return err
			}
			p.PrintSuccess("Prediction started",
				probeParam(s),
				ui.Param{Key: "Mode", Value: mode.String()},
				ui.Param{Key: "Set point", Value: ui.FormatTemperature(&setPoint, unit())},
			)
			return nil
		})
	},
}

var cancelPredictionCmd = &cobra.Command{
	Use:   "cancel-prediction <serial>",
	Short: "Stop a running prediction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *probe.Session, p *ui.Printer) error {
			if err := s.CancelPrediction(ctx); err != nil {
				p.PrintError("Cancel prediction failed", err)
				return err
			}
			p.PrintSuccess("Prediction cancelled", probeParam(s))
			return nil
		})
	},
}

var silenceCmd = &cobra.Command{
	Use:   "silence <serial>",
	Short: "Silence sounding alarms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *probe.Session, p *ui.Printer) error {
			if err := s.SilenceAlarms(ctx); err != nil {
				p.PrintError("Silence alarms failed", err)
				return err
			}
			p.PrintSuccess("Alarms silenced", probeParam(s))
			return nil
		})
	},
}

var sessionInfoCmd = &cobra.Command{
	Use:   "session-info <serial>",
	Short: "Show the probe's logging session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *probe.Session, p *ui.Printer) error {
			info, err := s.ReadSessionInfo(ctx)
			if err != nil {
				p.PrintError("Read session info failed", err)
				return err
			}
			overheat, err := s.ReadOverTemperature(ctx)
			if err != nil {
				logging.Warn("Read over temperature failed", zap.Error(err))
			}
			if jsonOutput() {
				return p.PrintJSON(struct {
					protocol.SessionInfo
					Overheated []int `json:"overheated"`
				}{info, overheat.Sensors()})
			}
			hot := "none"
			if overheat.Any() {
				hot = fmt.Sprint(overheat.Sensors())
			}
			p.PrintSuccess("Session info",
				probeParam(s),
				ui.Param{Key: "Session ID", Value: fmt.Sprintf("0x%08X", info.SessionID)},
				ui.Param{Key: "Sample period", Value: info.SamplePeriod.String()},
				ui.Param{Key: "Overheated", Value: hot},
			)
			return nil
		})
	},
}

// waitFor polls cond until it holds or ctx ends
func waitFor(ctx context.Context, interval time.Duration, cond func() bool) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

var logsCmd = &cobra.Command{
	Use:   "logs <serial>",
	Short: "Download the probe's logged temperature records",
	Long: `Download every record the probe holds as JSON lines on stdout. A
summary is written to stderr.`,
	Example: `  probekit logs 10001234 > cook.jsonl`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *probe.Session, p *ui.Printer) error {
			ctx, cancel := context.WithTimeout(ctx, logsWait)
			defer cancel()

			pr := s.Probe()
			if !waitFor(ctx, 100*time.Millisecond, func() bool { return !pr.Snapshot().LastStatus.IsZero() }) {
				return protocol.NewError(protocol.ErrTypeTimeout, "no status notification within %s", logsWait)
			}
			st := pr.Snapshot()
			if st.LogCount() == 0 {
				ui.NewPrinter(os.Stderr).PrintWarning("Probe holds no records", probeParam(s))
				return nil
			}

			if err := s.RequestLogs(ctx, st.MinSequence, st.MaxSequence); err != nil {
				return fmt.Errorf("request logs: %w", err)
			}
			complete := waitFor(ctx, 200*time.Millisecond, func() bool {
				return len(pr.Log().Missing(st.MinSequence, st.MaxSequence)) == 0
			})

			for _, rec := range pr.Log().Records() {
				if err := p.PrintJSON(rec); err != nil {
					return err
				}
			}

			summary := []ui.Param{
				probeParam(s),
				{Key: "Range", Value: fmt.Sprintf("%d..%d", st.MinSequence, st.MaxSequence)},
				{Key: "Synced", Value: fmt.Sprintf("%.1f%%", pr.Log().PercentSynced(st.MinSequence, st.MaxSequence))},
			}
			stderr := ui.NewPrinter(os.Stderr)
			if !complete {
				stderr.PrintWarning("Log download incomplete", summary...)
				return nil
			}
			stderr.PrintSuccess("Log downloaded", summary...)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <serial>",
	Short: "Reset a probe to its factory state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serial, err := protocol.ParseSerial(args[0])
		if err != nil {
			return err
		}
		if !resetYes && !ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), ui.ResetThermometerConfirmation(protocol.FormatSerial(serial))) {
			return nil
		}
		return withSession(cmd, args[0], func(ctx context.Context, s *probe.Session, p *ui.Printer) error {
			if err := s.ResetThermometer(ctx); err != nil {
				p.PrintError("Reset failed", err)
				return err
			}
			p.PrintSuccess("Probe reset", probeParam(s))
			return nil
		})
	},
}

var nicknameCmd = &cobra.Command{
	Use:   "nickname <serial> [name]",
	Short: "Name a probe, or clear its name",
	Long: `Store a nickname for a probe in the config file. The nickname is shown
by scan, monitor and the bridge. Omit the name to clear it.`,
	Example: `  probekit nickname 10001234 Brisket
  probekit nickname 10001234`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		serial, err := protocol.ParseSerial(args[0])
		if err != nil {
			return err
		}
		key := protocol.FormatSerial(serial)
		name := ""
		if len(args) == 2 {
			name = strings.TrimSpace(args[1])
		}
		registry.SetProbeNickname(key, name)
		if err := saveConfig(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		p := ui.NewPrinter(cmd.OutOrStdout())
		if name == "" {
			p.PrintSuccess("Nickname cleared", ui.Param{Key: "Probe", Value: key})
			return nil
		}
		p.PrintSuccess("Nickname saved", ui.Param{Key: "Probe", Value: key}, ui.Param{Key: "Nickname", Value: name})
		return nil
	},
}
