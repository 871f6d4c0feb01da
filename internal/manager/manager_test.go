package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/probekit/internal/probe"
	"github.com/muurk/probekit/internal/probedata"
	"github.com/muurk/probekit/internal/protocol"
	"github.com/muurk/probekit/internal/transport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)}
}

func advert(serial uint32, product probedata.ProductType, rssi int16) transport.Advertisement {
	adv := &protocol.Advertising{
		ProductType: product,
		Serial:      serial,
		Sensors:     probedata.InvalidSensors(),
		ID:          1,
	}
	return transport.Advertisement{
		Identity: protocol.FormatSerial(serial),
		Data:     adv.Bytes(),
		RSSI:     rssi,
	}
}

type fakeScanner struct {
	adverts []transport.Advertisement
	err     error
}

func (s *fakeScanner) Scan(ctx context.Context, fn func(transport.Advertisement)) error {
	for _, a := range s.adverts {
		fn(a)
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleAdvertisement(t *testing.T) {
	tests := []struct {
		name    string
		advert  transport.Advertisement
		wantNil bool
		wantErr bool
	}{
		{
			name:   "probe",
			advert: advert(0x1234, probedata.ProductPredictiveProbe, -50),
		},
		{
			name:    "repeater ignored",
			advert:  advert(0x1234, probedata.ProductMeatNetRepeater, -50),
			wantNil: true,
		},
		{
			name:    "short payload",
			advert:  transport.Advertisement{Identity: "x", Data: []byte{1, 2, 3}},
			wantNil: true,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			p, err := m.HandleAdvertisement(tt.advert)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleAdvertisement() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (p == nil) != tt.wantNil {
				t.Fatalf("HandleAdvertisement() probe = %v, wantNil %v", p, tt.wantNil)
			}
			if tt.wantNil {
				if m.Len() != 0 {
					t.Errorf("Len() = %d, want 0", m.Len())
				}
				return
			}
			snap := p.Snapshot()
			if snap.Identity != tt.advert.Identity {
				t.Errorf("Identity = %q, want %q", snap.Identity, tt.advert.Identity)
			}
			if snap.RSSI != tt.advert.RSSI {
				t.Errorf("RSSI = %d, want %d", snap.RSSI, tt.advert.RSSI)
			}
		})
	}
}

func TestDiscoveryEvents(t *testing.T) {
	m := New()
	sub := m.Subscribe(8)
	defer sub.Close()

	for i := 0; i < 2; i++ {
		if _, err := m.HandleAdvertisement(advert(0xAB, probedata.ProductPredictiveProbe, -40)); err != nil {
			t.Fatalf("HandleAdvertisement() error = %v", err)
		}
	}

	want := []probe.EventKind{probe.EventDiscovered, probe.EventAdvertising, probe.EventAdvertising}
	for _, kind := range want {
		select {
		case ev := <-sub.C():
			if ev.Kind != kind {
				t.Errorf("event = %v, want %v", ev.Kind, kind)
			}
		default:
			t.Fatalf("missing %v event", kind)
		}
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMaxProbes(t *testing.T) {
	m := New(WithMaxProbes(2))

	for serial := uint32(1); serial <= 2; serial++ {
		if _, err := m.HandleAdvertisement(advert(serial, probedata.ProductPredictiveProbe, -60)); err != nil {
			t.Fatalf("HandleAdvertisement(%d) error = %v", serial, err)
		}
	}
	_, err := m.HandleAdvertisement(advert(3, probedata.ProductPredictiveProbe, -60))
	if !errors.Is(err, ErrArenaFull) {
		t.Errorf("third probe error = %v, want ErrArenaFull", err)
	}
	if _, err := m.HandleAdvertisement(advert(1, probedata.ProductPredictiveProbe, -60)); err != nil {
		t.Errorf("known probe rejected when full: %v", err)
	}
}

func TestProbesSortedAndLookup(t *testing.T) {
	m := New()
	for _, serial := range []uint32{30, 10, 20} {
		if _, err := m.HandleAdvertisement(advert(serial, probedata.ProductPredictiveProbe, -70)); err != nil {
			t.Fatalf("HandleAdvertisement() error = %v", err)
		}
	}

	probes := m.Probes()
	for i, want := range []uint32{10, 20, 30} {
		if probes[i].Serial() != want {
			t.Errorf("Probes()[%d] = %d, want %d", i, probes[i].Serial(), want)
		}
	}
	if snaps := m.Snapshots(); len(snaps) != 3 || snaps[0].Serial != protocol.FormatSerial(10) {
		t.Errorf("Snapshots() = %v", snaps)
	}

	if _, err := m.Probe(20); err != nil {
		t.Errorf("Probe(20) error = %v", err)
	}
	if _, err := m.Probe(99); !protocol.IsType(err, protocol.ErrTypeProbeNotFound) {
		t.Errorf("Probe(99) error = %v, want ProbeNotFound", err)
	}
}

func TestNearest(t *testing.T) {
	clock := newClock()
	m := New(WithClock(clock.Now), WithProbeOptions(probe.WithClock(clock.Now)))

	if _, ok := m.Nearest(); ok {
		t.Error("Nearest() on empty manager should report false")
	}

	_, _ = m.HandleAdvertisement(advert(1, probedata.ProductPredictiveProbe, -80))
	clock.Advance(20 * time.Second)
	_, _ = m.HandleAdvertisement(advert(2, probedata.ProductPredictiveProbe, -70))
	_, _ = m.HandleAdvertisement(advert(3, probedata.ProductPredictiveProbe, -75))

	p, ok := m.Nearest()
	if !ok || p.Serial() != 2 {
		t.Fatalf("Nearest() = %v, %t, want serial 2", p, ok)
	}

	// Probe 1 is louder now but has to be fresh to count.
	clock.Advance(10 * time.Second)
	_, _ = m.HandleAdvertisement(advert(1, probedata.ProductPredictiveProbe, -30))
	if p, _ := m.Nearest(); p.Serial() != 1 {
		t.Errorf("Nearest() = %d, want 1", p.Serial())
	}
}

func TestSweep(t *testing.T) {
	clock := newClock()
	m := New(WithClock(clock.Now), WithProbeOptions(probe.WithClock(clock.Now)))
	sub := m.Subscribe(16)
	defer sub.Close()

	_, _ = m.HandleAdvertisement(advert(1, probedata.ProductPredictiveProbe, -50))
	clock.Advance(10 * time.Second)
	_, _ = m.HandleAdvertisement(advert(2, probedata.ProductPredictiveProbe, -50))
	clock.Advance(6 * time.Second)

	stale := m.Sweep(clock.Now())
	if len(stale) != 1 || stale[0] != 1 {
		t.Errorf("Sweep() = %v, want [1]", stale)
	}
	if again := m.Sweep(clock.Now()); len(again) != 0 {
		t.Errorf("second Sweep() = %v, want none", again)
	}

	var staleEvents int
	for {
		select {
		case ev := <-sub.C():
			if ev.Kind == probe.EventStale {
				staleEvents++
			}
			continue
		default:
		}
		break
	}
	if staleEvents != 1 {
		t.Errorf("stale events = %d, want 1", staleEvents)
	}
}

func TestRemove(t *testing.T) {
	m := New()
	p, _ := m.HandleAdvertisement(advert(7, probedata.ProductPredictiveProbe, -50))
	probeSub := p.Subscribe(1)
	sub := m.Subscribe(8)
	defer sub.Close()

	if err := m.Remove(7); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := m.Remove(7); !protocol.IsType(err, protocol.ErrTypeProbeNotFound) {
		t.Errorf("second Remove() = %v, want ProbeNotFound", err)
	}
	if _, ok := <-probeSub.C(); ok {
		t.Error("probe subscription should be closed")
	}
	if ev := <-sub.C(); ev.Kind != probe.EventRemoved {
		t.Errorf("event = %v, want removed", ev.Kind)
	}
}

func TestRun(t *testing.T) {
	scanner := &fakeScanner{adverts: []transport.Advertisement{
		advert(1, probedata.ProductPredictiveProbe, -50),
		advert(2, probedata.ProductPredictiveProbe, -55),
		{Identity: "junk", Data: []byte{0xFF}},
	}}
	m := New(WithSweepInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx, scanner); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestRunScanError(t *testing.T) {
	m := New()
	err := m.Run(context.Background(), &fakeScanner{err: errors.New("adapter off")})
	if err == nil {
		t.Fatal("Run() should return scanner errors")
	}
}

func TestClose(t *testing.T) {
	m := New()
	_, _ = m.HandleAdvertisement(advert(1, probedata.ProductPredictiveProbe, -50))
	sub := m.Subscribe(4)

	m.Close()
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	for range sub.C() {
	}
}
