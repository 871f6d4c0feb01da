package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/muurk/probekit/internal/logging"
	"github.com/muurk/probekit/internal/protocol"
	"github.com/muurk/probekit/internal/transport"
)

// DefaultAdapterName is the controller used when none is configured.
const DefaultAdapterName = "hci0"

// Adapter is a BLE controller.
type Adapter struct {
	name string
	bt   *bluetooth.Adapter
	log  *zap.Logger

	enableOnce sync.Once
	enableErr  error

	mu    sync.Mutex
	addrs map[string]bluetooth.Address
}

// NewAdapter wraps the named controller. An empty name selects the
// platform default.
func NewAdapter(name string) *Adapter {
	if name == "" {
		name = DefaultAdapterName
	}
	return &Adapter{
		name:  name,
		bt:    controller(name),
		log:   logging.Named("ble").With(zap.String("adapter", name)),
		addrs: make(map[string]bluetooth.Address),
	}
}

// Enable powers up the controller. It is called by Scan and Dial and only
// runs once.
func (a *Adapter) Enable() error {
	a.enableOnce.Do(func() {
		a.log.Debug("Enabling adapter")
		if err := a.bt.Enable(); err != nil {
			a.enableErr = fmt.Errorf("enable %s: %w", a.name, err)
		}
	})
	return a.enableErr
}

// Scan reports probe-vendor advertisements until ctx is cancelled.
func (a *Adapter) Scan(ctx context.Context, fn func(transport.Advertisement)) error {
	if err := a.Enable(); err != nil {
		return err
	}
	return a.scan(ctx, func(r bluetooth.ScanResult) bool {
		data, ok := vendorData(r.ManufacturerData())
		if !ok {
			return true
		}
		fn(transport.Advertisement{
			Identity: a.remember(r.Address),
			Data:     data,
			RSSI:     r.RSSI,
			SeenAt:   time.Now(),
		})
		return true
	})
}

// scan runs the blocking adapter scan, stopping when ctx is done or visit
// returns false.
func (a *Adapter) scan(ctx context.Context, visit func(bluetooth.ScanResult) bool) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = a.bt.StopScan()
		case <-done:
		}
	}()

	a.log.Debug("Scan started")
	err := a.bt.Scan(func(bt *bluetooth.Adapter, r bluetooth.ScanResult) {
		if !visit(r) {
			_ = bt.StopScan()
		}
	})
	a.log.Debug("Scan stopped", zap.Error(err))

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

func (a *Adapter) remember(addr bluetooth.Address) string {
	id := addr.String()
	a.mu.Lock()
	a.addrs[id] = addr
	a.mu.Unlock()
	return id
}

func (a *Adapter) lookup(identity string) (bluetooth.Address, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	addr, ok := a.addrs[identity]
	return addr, ok
}

// resolve scans until identity is seen or ctx is done.
func (a *Adapter) resolve(ctx context.Context, identity string) (bluetooth.Address, error) {
	if addr, ok := a.lookup(identity); ok {
		return addr, nil
	}

	a.log.Debug("Resolving address", zap.String("identity", identity))
	var found bluetooth.Address
	var ok bool
	err := a.scan(ctx, func(r bluetooth.ScanResult) bool {
		if r.Address.String() != identity {
			return true
		}
		found, ok = r.Address, true
		a.remember(r.Address)
		return false
	})
	if ok {
		return found, nil
	}
	if err == nil {
		err = fmt.Errorf("device %s not seen", identity)
	}
	return bluetooth.Address{}, err
}

type connectResult struct {
	device bluetooth.Device
	err    error
}

// Dial connects to identity, discovers the probe's endpoints and returns a
// connection. An identity not seen by a previous Scan is located by
// scanning until ctx is done.
func (a *Adapter) Dial(ctx context.Context, identity string) (transport.Conn, error) {
	if err := a.Enable(); err != nil {
		return nil, err
	}
	addr, err := a.resolve(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", identity, err)
	}

	results := make(chan connectResult, 1)
	go func() {
		device, err := a.bt.Connect(addr, bluetooth.ConnectionParams{})
		results <- connectResult{device: device, err: err}
	}()

	var device bluetooth.Device
	select {
	case res := <-results:
		if res.err != nil {
			return nil, fmt.Errorf("connect %s: %w", identity, res.err)
		}
		device = res.device
	case <-ctx.Done():
		go func() {
			if res := <-results; res.err == nil {
				_ = res.device.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}

	chars, err := discover(device)
	if err != nil {
		_ = device.Disconnect()
		return nil, err
	}

	logging.LogConnection(identity, "ble connected")
	return &conn{
		identity: identity,
		device:   device,
		chars:    chars,
		log:      a.log.With(zap.String("identity", identity)),
	}, nil
}

// discover finds every transport endpoint on device.
func discover(device bluetooth.Device) (map[string]bluetooth.DeviceCharacteristic, error) {
	byService := make(map[string][]transport.Endpoint)
	var services []bluetooth.UUID
	for _, ep := range transport.Endpoints() {
		key := ep.Service.String()
		if _, seen := byService[key]; !seen {
			u, err := bluetooth.ParseUUID(key)
			if err != nil {
				return nil, fmt.Errorf("service uuid %s: %w", key, err)
			}
			services = append(services, u)
		}
		byService[key] = append(byService[key], ep)
	}

	svcs, err := device.DiscoverServices(services)
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}

	chars := make(map[string]bluetooth.DeviceCharacteristic)
	for _, svc := range svcs {
		eps := byService[svc.UUID().String()]
		if len(eps) == 0 {
			continue
		}
		var want []bluetooth.UUID
		for _, ep := range eps {
			u, err := bluetooth.ParseUUID(ep.Characteristic.String())
			if err != nil {
				return nil, fmt.Errorf("characteristic uuid %s: %w", ep.Characteristic, err)
			}
			want = append(want, u)
		}
		found, err := svc.DiscoverCharacteristics(want)
		if err != nil {
			return nil, fmt.Errorf("discover characteristics of %s: %w", svc.UUID(), err)
		}
		for _, c := range found {
			for _, ep := range eps {
				if c.UUID().String() == ep.Characteristic.String() {
					chars[ep.Name] = c
				}
			}
		}
	}

	for _, ep := range transport.Endpoints() {
		if _, ok := chars[ep.Name]; !ok {
			return nil, fmt.Errorf("%w: %s not found", transport.ErrUnknownEndpoint, ep)
		}
	}
	return chars, nil
}

// vendorData returns the manufacturer payload carrying the probe vendor's
// company identifier.
func vendorData(elements []bluetooth.ManufacturerDataElement) ([]byte, bool) {
	for _, md := range elements {
		if md.CompanyID == protocol.ManufacturerID {
			return append([]byte(nil), md.Data...), true
		}
	}
	return nil, false
}

type conn struct {
	identity string
	device   bluetooth.Device
	chars    map[string]bluetooth.DeviceCharacteristic
	log      *zap.Logger

	mu      sync.Mutex
	closed  bool
	streams []*stream
}

func (c *conn) characteristic(ep transport.Endpoint) (bluetooth.DeviceCharacteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return bluetooth.DeviceCharacteristic{}, transport.ErrClosed
	}
	ch, ok := c.chars[ep.Name]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%w: %s", transport.ErrUnknownEndpoint, ep)
	}
	return ch, nil
}

func (c *conn) Write(ctx context.Context, ep transport.Endpoint, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := c.characteristic(ep)
	if err != nil {
		return err
	}
	if _, err := ch.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("write %s: %w", ep, err)
	}
	return nil
}

func (c *conn) Subscribe(ctx context.Context, ep transport.Endpoint) (<-chan []byte, error) {
	ch, err := c.characteristic(ep)
	if err != nil {
		return nil, err
	}

	s := newStream(DefaultStreamBuffer)
	if err := ch.EnableNotifications(s.deliver); err != nil {
		return nil, fmt.Errorf("enable notifications on %s: %w", ep, err)
	}

	c.mu.Lock()
	c.streams = append(c.streams, s)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.close()
	}()
	return s.ch, nil
}

func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()

	for _, s := range streams {
		s.close()
		if n := s.dropped.Load(); n > 0 {
			c.log.Debug("Notifications dropped", zap.Uint64("count", n))
		}
	}
	logging.LogConnection(c.identity, "ble disconnected")
	if err := c.device.Disconnect(); err != nil {
		return fmt.Errorf("disconnect %s: %w", c.identity, err)
	}
	return nil
}

var (
	_ transport.Scanner = (*Adapter)(nil)
	_ transport.Dialer  = (*Adapter)(nil)
	_ transport.Conn    = (*conn)(nil)
)
