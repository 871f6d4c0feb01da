package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/probekit/internal/logging"
	"github.com/muurk/probekit/internal/probe"
	"github.com/muurk/probekit/internal/protocol"
	"github.com/muurk/probekit/internal/transport"
)

// Manager defaults.
const (
	DefaultMaxProbes     = 8
	DefaultSweepInterval = time.Second
)

// ErrArenaFull is returned when a new probe is seen while MaxProbes are
// already tracked.
var ErrArenaFull = errors.New("probe limit reached")

// Option configures a Manager.
type Option func(*Manager)

// WithMaxProbes bounds the number of tracked probes.
func WithMaxProbes(n int) Option {
	return func(m *Manager) { m.maxProbes = n }
}

// WithProbeOptions is applied to every probe the manager creates.
func WithProbeOptions(opts ...probe.Option) Option {
	return func(m *Manager) { m.probeOpts = append(m.probeOpts, opts...) }
}

// WithClock replaces time.Now for sweeps and discovery events.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSweepInterval sets how often Run checks for stale probes.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) { m.sweepEvery = d }
}

// Manager owns the probes seen by one scanner.
type Manager struct {
	maxProbes  int
	probeOpts  []probe.Option
	now        func() time.Time
	sweepEvery time.Duration
	events     *probe.Broker
	log        *zap.Logger

	mu     sync.RWMutex
	probes map[uint32]*probe.Probe
}

// New creates an empty manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		maxProbes:  DefaultMaxProbes,
		now:        time.Now,
		sweepEvery: DefaultSweepInterval,
		events:     probe.NewBroker(),
		log:        logging.Named("manager"),
		probes:     make(map[uint32]*probe.Probe),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run scans until ctx is done, feeding every advertisement into the arena
// and sweeping for stale probes. A cancelled context is not an error.
func (m *Manager) Run(ctx context.Context, scanner transport.Scanner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.sweepLoop(ctx)
	}()

	m.log.Info("Scanning for probes")
	err := scanner.Scan(ctx, func(a transport.Advertisement) {
		if _, err := m.HandleAdvertisement(a); err != nil {
			m.log.Debug("Ignoring advertisement", zap.String("identity", a.Identity), zap.Error(err))
			logging.LogRawBytes("Undecodable advertisement", a.Data)
		}
	})
	cancel()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

func (m *Manager) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// HandleAdvertisement decodes one advertisement and applies it to its
// probe, creating the probe on first sight. Advertisements from other
// products return a nil probe and no error.
func (m *Manager) HandleAdvertisement(a transport.Advertisement) (*probe.Probe, error) {
	adv, err := protocol.ParseAdvertising(a.Data)
	if err != nil {
		return nil, err
	}
	if !adv.IsProbe() {
		m.log.Debug("Skipping non-probe advertisement",
			zap.String("identity", a.Identity),
			zap.Stringer("product", adv.ProductType),
		)
		return nil, nil
	}

	p, created, err := m.getOrCreate(adv.Serial)
	if err != nil {
		return nil, err
	}
	p.SetIdentity(a.Identity)
	if created {
		m.log.Info("Discovered probe",
			zap.String("serial", adv.SerialString()),
			zap.String("identity", a.Identity),
			zap.Int16("rssi", a.RSSI),
		)
		m.events.Publish(probe.Event{Kind: probe.EventDiscovered, Snapshot: p.Snapshot(), At: m.now()})
	}
	if err := p.ApplyAdvertising(adv, a.RSSI); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Manager) getOrCreate(serial uint32) (*probe.Probe, bool, error) {
	m.mu.RLock()
	p, ok := m.probes[serial]
	m.mu.RUnlock()
	if ok {
		return p, false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.probes[serial]; ok {
		return p, false, nil
	}
	if m.maxProbes > 0 && len(m.probes) >= m.maxProbes {
		return nil, false, fmt.Errorf("%w: %d probes tracked, %s not added",
			ErrArenaFull, len(m.probes), protocol.FormatSerial(serial))
	}

	opts := append([]probe.Option{}, m.probeOpts...)
	opts = append(opts, probe.WithParent(m.events))
	p = probe.New(serial, opts...)
	m.probes[serial] = p
	return p, true, nil
}

// Probes returns every tracked probe ordered by serial.
func (m *Manager) Probes() []*probe.Probe {
	m.mu.RLock()
	out := make([]*probe.Probe, 0, len(m.probes))
	for _, p := range m.probes {
		out = append(out, p)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Serial() < out[j].Serial() })
	return out
}

// Snapshots returns the state of every tracked probe ordered by serial.
func (m *Manager) Snapshots() []probe.State {
	probes := m.Probes()
	out := make([]probe.State, len(probes))
	for i, p := range probes {
		out[i] = p.Snapshot()
	}
	return out
}

// Probe looks up a probe by serial.
func (m *Manager) Probe(serial uint32) (*probe.Probe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.probes[serial]
	if !ok {
		return nil, protocol.NewError(protocol.ErrTypeProbeNotFound, "no probe %s", protocol.FormatSerial(serial))
	}
	return p, nil
}

// Nearest returns the non-stale probe with the strongest signal.
func (m *Manager) Nearest() (*probe.Probe, bool) {
	now := m.now()
	var (
		best     *probe.Probe
		bestRSSI int16
	)
	for _, p := range m.Probes() {
		if p.IsStale(now) {
			continue
		}
		rssi := p.Snapshot().RSSI
		if best == nil || rssi > bestRSSI {
			best, bestRSSI = p, rssi
		}
	}
	return best, best != nil
}

// Remove stops tracking serial and closes its subscriptions.
func (m *Manager) Remove(serial uint32) error {
	m.mu.Lock()
	p, ok := m.probes[serial]
	delete(m.probes, serial)
	m.mu.Unlock()

	if !ok {
		return protocol.NewError(protocol.ErrTypeProbeNotFound, "no probe %s", protocol.FormatSerial(serial))
	}
	p.Remove()
	return nil
}

// Sweep marks probes stale that have gone quiet and returns the serials
// that just became stale.
func (m *Manager) Sweep(now time.Time) []uint32 {
	var stale []uint32
	for _, p := range m.Probes() {
		if p.Refresh(now) {
			stale = append(stale, p.Serial())
		}
	}
	if len(stale) > 0 {
		m.log.Debug("Probes went stale", zap.Int("count", len(stale)))
	}
	return stale
}

// Subscribe returns a subscription to events from every tracked probe.
func (m *Manager) Subscribe(buffer int) *probe.Subscription {
	return m.events.Subscribe(buffer)
}

// Len returns the number of tracked probes.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.probes)
}

// Close removes every probe and closes all manager subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	probes := m.probes
	m.probes = make(map[uint32]*probe.Probe)
	m.mu.Unlock()

	for _, p := range probes {
		p.Remove()
	}
	m.events.Close()
}
