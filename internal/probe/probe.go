package probe

import (
	"fmt"
	"sync"
	"time"

	"github.com/muurk/probekit/internal/probedata"
	"github.com/muurk/probekit/internal/protocol"
)

// Reconciler defaults.
const (
	DefaultGracePeriod  = 5 * time.Second
	DefaultStaleTimeout = 15 * time.Second
)

// Option configures a Probe.
type Option func(*Probe)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Probe) { p.now = now }
}

// WithGracePeriod sets how long a local ID or colour change shadows
// external updates.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Probe) { p.grace = d }
}

// WithStaleTimeout sets how long a probe may go without updates before it
// is reported stale.
func WithStaleTimeout(d time.Duration) Option {
	return func(p *Probe) { p.staleTimeout = d }
}

// WithParent also publishes every event to b.
func WithParent(b *Broker) Option {
	return func(p *Probe) { p.parent = b }
}

// Probe owns the reconciled state of one probe. All methods are safe for
// concurrent use.
type Probe struct {
	serial       uint32
	now          func() time.Time
	grace        time.Duration
	staleTimeout time.Duration
	parent       *Broker
	events       *Broker
	log          *Log

	mu    sync.Mutex
	state State
}

// New creates the state holder for serial.
func New(serial uint32, opts ...Option) *Probe {
	p := &Probe{
		serial:       serial,
		now:          time.Now,
		grace:        DefaultGracePeriod,
		staleTimeout: DefaultStaleTimeout,
		events:       NewBroker(),
		log:          NewLog(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.state = State{
		Serial:  protocol.FormatSerial(serial),
		Sensors: probedata.InvalidSensors(),
		ID:      probedata.MinProbeID,
		Stale:   true,
	}
	return p
}

// Serial returns the probe's serial number.
func (p *Probe) Serial() uint32 {
	return p.serial
}

// Log returns the probe's temperature log.
func (p *Probe) Log() *Log {
	return p.log
}

// Snapshot returns a deep copy of the current state.
func (p *Probe) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// Subscribe returns a subscription to this probe's events.
func (p *Probe) Subscribe(buffer int) *Subscription {
	return p.events.Subscribe(buffer)
}

// SetIdentity records the transport identity used to dial the probe.
func (p *Probe) SetIdentity(identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Identity = identity
}

// ApplyAdvertising merges a broadcast observation. Advertisements for a
// different serial are rejected.
func (p *Probe) ApplyAdvertising(adv *protocol.Advertising, rssi int16) error {
	if adv.Serial != p.serial {
		return fmt.Errorf("advertising for %s applied to probe %s",
			protocol.FormatSerial(adv.Serial), protocol.FormatSerial(p.serial))
	}

	p.mu.Lock()
	now := p.now()
	s := &p.state
	s.ProductType = adv.ProductType
	s.RSSI = rssi
	p.setSensors(adv.Sensors, adv.Virtual)
	s.Mode = adv.Mode
	s.Battery = adv.Battery
	s.Overheat = adv.Overheat
	p.mergeIdentity(now, adv.ID, adv.Color)
	s.LastAdvertising = now
	p.touch(now)
	ev := p.eventLocked(EventAdvertising, now)
	p.mu.Unlock()

	p.publish(ev)
	return nil
}

// ApplyStatus merges a session status notification. Optional sections the
// payload lacks keep their previous values.
func (p *Probe) ApplyStatus(st *protocol.Status) {
	p.mu.Lock()
	now := p.now()
	s := &p.state
	s.MinSequence = st.MinSequence
	s.MaxSequence = st.MaxSequence
	p.setSensors(st.Sensors, st.Virtual)
	s.Mode = st.Mode
	s.Battery = st.Battery
	p.mergeIdentity(now, st.ID, st.Color)

	pred := st.Prediction
	s.Prediction = &pred
	p.mergeFoodSafe(st.FoodSafeConfig, st.FoodSafeStatus)
	if st.Overheat != nil {
		s.Overheat = *st.Overheat
	}
	if st.Preferences != nil {
		prefs := *st.Preferences
		s.Preferences = &prefs
	}
	if st.Alarms != nil {
		alarms := *st.Alarms
		s.Alarms = &alarms
	}
	s.LastStatus = now
	p.touch(now)
	ev := p.eventLocked(EventStatus, now)
	p.mu.Unlock()

	p.publish(ev)
}

// SetIDLocal records an ID the caller has just written to the probe.
func (p *Probe) SetIDLocal(id probedata.ProbeID) {
	p.local(func(now time.Time, s *State) {
		s.ID = id
		s.IDSetAt = now
	})
}

// SetColorLocal records a colour the caller has just written to the probe.
func (p *Probe) SetColorLocal(c probedata.ProbeColor) {
	p.local(func(now time.Time, s *State) {
		s.Color = c
		s.ColorSetAt = now
	})
}

func (p *Probe) setAlarms(table probedata.AlarmTable) {
	p.local(func(_ time.Time, s *State) {
		s.Alarms = &table
	})
}

func (p *Probe) setPowerMode(mode probedata.PowerMode) {
	p.local(func(_ time.Time, s *State) {
		s.Preferences = &probedata.Preferences{PowerMode: mode}
	})
}

func (p *Probe) setFoodSafeConfig(cfg probedata.FoodSafeConfig) {
	p.local(func(_ time.Time, s *State) {
		if s.FoodSafe == nil {
			s.FoodSafe = &probedata.FoodSafeData{}
		}
		s.FoodSafe.Config = cfg
	})
}

func (p *Probe) setPrediction(mode probedata.PredictionMode, setPoint float64) {
	p.local(func(_ time.Time, s *State) {
		if s.Prediction == nil {
			s.Prediction = &probedata.Prediction{}
		}
		s.Prediction.Mode = mode
		s.Prediction.SetPoint = setPoint
	})
}

func (p *Probe) local(fn func(now time.Time, s *State)) {
	p.mu.Lock()
	now := p.now()
	fn(now, &p.state)
	ev := p.eventLocked(EventLocalChange, now)
	p.mu.Unlock()

	p.publish(ev)
}

// IsStale reports whether nothing has been heard from the probe within the
// stale timeout.
func (p *Probe) IsStale(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.staleLocked(now)
}

// Refresh updates the informational Stale flag and reports whether the
// probe just became stale.
func (p *Probe) Refresh(now time.Time) bool {
	p.mu.Lock()
	stale := p.staleLocked(now)
	changed := stale && !p.state.Stale
	p.state.Stale = stale
	var ev Event
	if changed {
		ev = p.eventLocked(EventStale, now)
	}
	p.mu.Unlock()

	if changed {
		p.publish(ev)
	}
	return changed
}

// Remove closes every subscription and publishes EventRemoved to the
// parent. The state stays readable.
func (p *Probe) Remove() {
	p.mu.Lock()
	ev := p.eventLocked(EventRemoved, p.now())
	p.mu.Unlock()

	if p.parent != nil {
		p.parent.Publish(ev)
	}
	p.events.Close()
}

func (p *Probe) publishConnection() {
	p.mu.Lock()
	ev := p.eventLocked(EventConnection, p.now())
	p.mu.Unlock()
	p.publish(ev)
}

func (p *Probe) staleLocked(now time.Time) bool {
	if p.state.LastUpdate.IsZero() {
		return true
	}
	return now.Sub(p.state.LastUpdate) > p.staleTimeout
}

func (p *Probe) touch(now time.Time) {
	p.state.LastUpdate = now
	p.state.Stale = false
}

func (p *Probe) setSensors(sensors probedata.SensorArray, virtual probedata.VirtualReadings) {
	p.state.Sensors = sensors
	p.state.Temperatures = sensors.Temperatures()
	p.state.Virtual = virtual.Clone()
}

// mergeIdentity applies an externally reported ID and colour unless a local
// set is still inside its grace period.
func (p *Probe) mergeIdentity(now time.Time, id probedata.ProbeID, color probedata.ProbeColor) {
	if p.graceExpired(now, p.state.IDSetAt) {
		p.state.ID = id
	}
	if p.graceExpired(now, p.state.ColorSetAt) {
		p.state.Color = color
	}
}

func (p *Probe) graceExpired(now, setAt time.Time) bool {
	return setAt.IsZero() || now.Sub(setAt) >= p.grace
}

func (p *Probe) mergeFoodSafe(cfg *probedata.FoodSafeConfig, status *probedata.FoodSafeStatus) {
	s := &p.state
	switch {
	case cfg != nil && status != nil:
		st := *status
		s.FoodSafe = &probedata.FoodSafeData{Config: *cfg, Status: &st}
	case cfg != nil:
		if s.FoodSafe == nil {
			s.FoodSafe = &probedata.FoodSafeData{}
		}
		s.FoodSafe.Config = *cfg
	case status != nil && s.FoodSafe != nil:
		st := *status
		s.FoodSafe.Status = &st
	}
}

func (p *Probe) eventLocked(kind EventKind, now time.Time) Event {
	return Event{Kind: kind, Snapshot: p.state.Clone(), At: now}
}

func (p *Probe) publish(ev Event) {
	p.events.Publish(ev)
	if p.parent != nil {
		p.parent.Publish(ev)
	}
}
