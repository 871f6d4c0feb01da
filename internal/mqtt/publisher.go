package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/muurk/probekit/internal/logging"
	"github.com/muurk/probekit/internal/probe"
)

// Publisher defaults.
const (
	DefaultTopicPrefix    = "probekit"
	DefaultClientID       = "probekit"
	DefaultPublishTimeout = 5 * time.Second
)

// ErrStopped is returned once Disconnect has been called.
var ErrStopped = errors.New("mqtt publisher stopped")

// Config selects the broker and topic layout.
type Config struct {
	Broker         string
	ClientID       string
	TopicPrefix    string
	PublishTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
}

// client is the part of paho.Client the publisher uses.
type client interface {
	IsConnected() bool
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Health is the retained per-probe health message.
type Health struct {
	Serial   string    `json:"serial"`
	LastSeen time.Time `json:"last_seen"`
	Healthy  bool      `json:"healthy"`
}

// Publisher forwards probe events to a broker.
type Publisher struct {
	cfg    Config
	client client
	log    *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	stale map[string]bool
}

// New creates a publisher for cfg.Broker, a URL such as
// tcp://localhost:1883. Nothing is dialled until Connect.
func New(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker not configured")
	}
	cfg.applyDefaults()
	p := newPublisher(cfg, nil)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		p.log.Info("MQTT connected", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.log.Warn("MQTT connection lost", zap.Error(err))
	})

	p.client = paho.NewClient(opts)
	return p, nil
}

func newPublisher(cfg Config, c client) *Publisher {
	return &Publisher{
		cfg:    cfg,
		client: c,
		log:    logging.Named("mqtt").With(zap.String("broker", cfg.Broker)),
		stopCh: make(chan struct{}),
		stale:  make(map[string]bool),
	}
}

// Connect waits for the initial broker connection, giving up when ctx is
// done or the publisher is stopped.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return ErrStopped
	default:
	}
	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			p.client.Disconnect(0)
			return ctx.Err()
		case <-p.stopCh:
			p.client.Disconnect(0)
			return ErrStopped
		default:
		}
	}
}

// Run publishes events from sub until ctx is done or sub closes.
func (p *Publisher) Run(ctx context.Context, sub *probe.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stopCh:
			return ErrStopped
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := p.Handle(ev); err != nil {
				p.log.Warn("Publish failed",
					zap.String("serial", ev.Snapshot.Serial),
					zap.Stringer("event", ev.Kind),
					zap.Error(err),
				)
			}
		}
	}
}

// Handle publishes whatever ev calls for.
func (p *Publisher) Handle(ev probe.Event) error {
	serial := ev.Snapshot.Serial
	switch ev.Kind {
	case probe.EventAdvertising, probe.EventStatus, probe.EventLocalChange:
		if err := p.publishState(ev.Snapshot); err != nil {
			return err
		}
		if p.setStale(serial, false) {
			return p.publishHealth(ev.Snapshot, true)
		}
		return nil
	case probe.EventDiscovered:
		p.setStale(serial, false)
		return p.publishHealth(ev.Snapshot, true)
	case probe.EventStale:
		p.setStale(serial, true)
		return p.publishHealth(ev.Snapshot, false)
	case probe.EventRemoved:
		p.mu.Lock()
		delete(p.stale, serial)
		p.mu.Unlock()
		return p.publishHealth(ev.Snapshot, false)
	default:
		return nil
	}
}

// setStale records the flag and reports whether a stale probe just
// recovered.
func (p *Publisher) setStale(serial string, stale bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	was, known := p.stale[serial]
	p.stale[serial] = stale
	return known && was && !stale
}

// StateTopic returns the topic snapshots of serial are published on.
func (p *Publisher) StateTopic(serial string) string {
	return fmt.Sprintf("%s/%s/state", p.cfg.TopicPrefix, serial)
}

// HealthTopic returns the retained health topic of serial.
func (p *Publisher) HealthTopic(serial string) string {
	return fmt.Sprintf("%s/%s/health", p.cfg.TopicPrefix, serial)
}

func (p *Publisher) publishState(s probe.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return p.publish(p.StateTopic(s.Serial), false, data)
}

func (p *Publisher) publishHealth(s probe.State, healthy bool) error {
	data, err := json.Marshal(Health{Serial: s.Serial, LastSeen: s.LastUpdate, Healthy: healthy})
	if err != nil {
		return fmt.Errorf("marshal health: %w", err)
	}
	return p.publish(p.HealthTopic(s.Serial), true, data)
}

func (p *Publisher) publish(topic string, retained bool, data []byte) error {
	if !p.client.IsConnected() {
		return errors.New("mqtt client not connected")
	}

	token := p.client.Publish(topic, 1, retained, data)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Debug("Published", zap.String("topic", topic), zap.Int("bytes", len(data)), zap.Bool("retained", retained))
	return nil
}

// Disconnect stops the publisher. Safe to call more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.log.Info("MQTT disconnected")
}
