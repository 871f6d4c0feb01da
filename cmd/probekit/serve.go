package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/probekit/internal/discovery"
	"github.com/muurk/probekit/internal/logging"
	"github.com/muurk/probekit/internal/mqtt"
	"github.com/muurk/probekit/internal/server"
	"github.com/muurk/probekit/internal/ui"
	"github.com/muurk/probekit/internal/version"
)

// Serve command flags
var (
	serveListen     string
	serveNoAnnounce bool
	serveInstance   string
	mqttBroker      string
	mqttPrefix      string
)

// mqttEventBuffer sizes the publisher's subscription; MQTT round trips are
// slower than websocket writes.
const mqttEventBuffer = 256

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address for HTTP and websocket (default from config, "+server.DefaultListen+")")
	serveCmd.Flags().BoolVar(&serveNoAnnounce, "no-announce", false, "Do not advertise the bridge over mDNS")
	serveCmd.Flags().StringVar(&serveInstance, "instance", "", "mDNS instance name (default: hostname)")
	serveCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "Publish snapshots to this MQTT broker (e.g. tcp://localhost:1883)")
	serveCmd.Flags().StringVar(&mqttPrefix, "mqtt-prefix", "", "MQTT topic prefix (default: "+mqtt.DefaultTopicPrefix+")")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a bridge that shares live probe state over the network",
	Long: `Scan continuously and serve every probe heard over HTTP and websocket.

Endpoints:
  GET /probes           JSON array of probe snapshots
  GET /probes/{serial}  One probe snapshot
  GET /ws               Snapshot messages followed by live events

The bridge announces itself over mDNS as ` + discovery.ServiceType + ` so that
'probekit bridges' can find it. With --mqtt-broker every event is also
published to MQTT: state under <prefix>/<serial>/state and retained
health under <prefix>/<serial>/health.`,
	Example: `  # Serve on the default port and announce over mDNS
  probekit serve

  # Serve on a custom port without mDNS
  probekit serve --listen :9090 --no-announce

  # Also publish to a local broker
  probekit serve --mqtt-broker tcp://localhost:1883 --mqtt-prefix kitchen`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	serverPrefs := prefs().Server
	listen := serverPrefs.Listen
	if serveListen != "" {
		listen = serveListen
	}
	announce := serverPrefs.Announce && !serveNoAnnounce

	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return fmt.Errorf("listen address %q needs an explicit port for mDNS", listen)
	}

	instance := serveInstance
	if instance == "" {
		if instance, err = os.Hostname(); err != nil || instance == "" {
			instance = "probekit"
		}
	}

	publisher, err := newPublisher()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	m := newManager()
	defer m.Close()

	srv := server.New(server.Config{
		Listen:    listen,
		Nicknames: nicknames,
	}, m)

	params := []ui.Param{
		{Key: "Listen", Value: listen},
		{Key: "Adapter", Value: prefs().Adapter},
		{Key: "Version", Value: version.Version},
	}
	if announce {
		params = append(params, ui.Param{Key: "mDNS", Value: instance})
	}
	if publisher != nil {
		params = append(params, ui.Param{Key: "MQTT", Value: mqttBrokerAddress()})
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintHeader("Probekit Bridge", "serve", params...)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := m.Run(ctx, newAdapter()); err != nil {
			return fmt.Errorf("scanner stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return srv.Start(ctx)
	})

	if announce {
		g.Go(func() error {
			return discovery.Announce(ctx, instance, port, version.TXT()...)
		})
	}

	if publisher != nil {
		sub := m.Subscribe(mqttEventBuffer)
		g.Go(func() error {
			defer sub.Close()
			defer publisher.Disconnect()
			if err := publisher.Connect(ctx); err != nil {
				// The bridge stays useful without MQTT.
				logging.Error("MQTT unavailable, publishing disabled", zap.Error(err))
				return nil
			}
			if err := publisher.Run(ctx, sub); err != nil && !errors.Is(err, mqtt.ErrStopped) {
				return err
			}
			return nil
		})
	}

	// Persist last-seen identities periodically so later commands can dial
	// without scanning.
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				rememberProbes(m)
				return nil
			case <-ticker.C:
				rememberProbes(m)
			}
		}
	})

	err = g.Wait()
	logging.Info("Bridge stopped", zap.Error(err))
	return err
}

func mqttBrokerAddress() string {
	if mqttBroker != "" {
		return mqttBroker
	}
	if p := prefs().MQTT; p != nil {
		return p.Broker
	}
	return ""
}

// newPublisher returns nil when no broker is configured.
func newPublisher() (*mqtt.Publisher, error) {
	cfg := mqtt.Config{Broker: mqttBrokerAddress()}
	if cfg.Broker == "" {
		return nil, nil
	}
	if p := prefs().MQTT; p != nil {
		cfg.ClientID = p.ClientID
		cfg.TopicPrefix = p.TopicPrefix
	}
	if mqttPrefix != "" {
		cfg.TopicPrefix = mqttPrefix
	}

	publisher, err := mqtt.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT publisher: %w", err)
	}
	return publisher, nil
}
