package probe

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/probekit/internal/probedata"
	"github.com/muurk/probekit/internal/protocol"
	"github.com/muurk/probekit/internal/transport"
)

type fakeConn struct {
	mu      sync.Mutex
	streams map[string]chan []byte
	writes  [][]byte
	closed  bool
	onWrite func(c *fakeConn, data []byte)
}

func newFakeConn() *fakeConn {
	return &fakeConn{streams: make(map[string]chan []byte)}
}

func (c *fakeConn) Write(_ context.Context, ep transport.Endpoint, data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	if ep != transport.UARTRx {
		c.mu.Unlock()
		return transport.ErrUnknownEndpoint
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	hook := c.onWrite
	c.mu.Unlock()

	if hook != nil {
		hook(c, data)
	}
	return nil
}

func (c *fakeConn) Subscribe(_ context.Context, ep transport.Endpoint) (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan []byte, 16)
	c.streams[ep.Name] = ch
	return ch, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) push(ep transport.Endpoint, data []byte) {
	c.mu.Lock()
	ch := c.streams[ep.Name]
	c.mu.Unlock()
	ch <- data
}

func (c *fakeConn) drop(ep transport.Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.streams[ep.Name])
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

type fakeDialer struct {
	failures atomic.Int32
	attempts atomic.Int32
	block    chan struct{}
	entered  chan struct{}
	conn     *fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, identity string) (transport.Conn, error) {
	d.attempts.Add(1)
	if d.entered != nil {
		close(d.entered)
		d.entered = nil
	}
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.failures.Load() > 0 {
		d.failures.Add(-1)
		return nil, errors.New("radio busy")
	}
	return d.conn, nil
}

var testSessionConfig = SessionConfig{
	MaxAttempts:     3,
	RetryDelay:      time.Millisecond,
	ResponseTimeout: 200 * time.Millisecond,
}

func connectedSession(t *testing.T) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	s := NewSession(New(testSerial), &fakeDialer{conn: conn}, "AA:BB", testSessionConfig)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Disconnect() })
	return s, conn
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func statusBytes(maxSeq uint32) []byte {
	st := testStatus(2, 3)
	st.MaxSequence = maxSeq
	return st.Bytes()
}

func TestSessionConnect(t *testing.T) {
	p := New(testSerial)
	sub := p.Subscribe(4)
	defer sub.Close()

	conn := newFakeConn()
	s := NewSession(p, &fakeDialer{conn: conn}, "AA:BB", testSessionConfig)
	if s.State() != Disconnected {
		t.Fatalf("initial State() = %v", s.State())
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() { _ = s.Disconnect() }()

	if s.State() != Connected {
		t.Errorf("State() = %v, want connected", s.State())
	}
	for _, ep := range []transport.Endpoint{transport.ProbeStatus, transport.UARTTx} {
		if _, ok := conn.streams[ep.Name]; !ok {
			t.Errorf("not subscribed to %s", ep)
		}
	}
	if ev := <-sub.C(); ev.Kind != EventConnection {
		t.Errorf("event = %v, want connection", ev.Kind)
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Errorf("Connect() when connected = %v, want nil", err)
	}
}

func TestSessionConnectRetries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		wantErr      bool
		wantAttempts int32
	}{
		{"first attempt", 0, false, 1},
		{"second attempt", 1, false, 2},
		{"gives up", 5, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDialer{conn: newFakeConn()}
			d.failures.Store(tt.failures)
			s := NewSession(New(testSerial), d, "AA:BB", testSessionConfig)
			defer func() { _ = s.Disconnect() }()

			err := s.Connect(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Connect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !protocol.IsType(err, protocol.ErrTypeConnectionFailed) {
					t.Errorf("error type = %v, want ConnectionFailed", err)
				}
				if s.State() != Disconnected {
					t.Errorf("State() = %v, want disconnected", s.State())
				}
			}
			if got := d.attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestSessionAlreadyConnecting(t *testing.T) {
	d := &fakeDialer{
		conn:    newFakeConn(),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	entered := d.entered
	s := NewSession(New(testSerial), d, "AA:BB", testSessionConfig)

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background()) }()
	<-entered

	err := s.Connect(context.Background())
	if !protocol.IsType(err, protocol.ErrTypeAlreadyConnecting) {
		t.Errorf("second Connect() = %v, want AlreadyConnecting", err)
	}

	close(d.block)
	if err := <-done; err != nil {
		t.Fatalf("first Connect() error = %v", err)
	}
	_ = s.Disconnect()
}

func TestSessionNotConnected(t *testing.T) {
	s := NewSession(New(testSerial), &fakeDialer{conn: newFakeConn()}, "AA:BB", testSessionConfig)
	ctx := context.Background()

	commands := map[string]func() error{
		"SetID":    func() error { return s.SetID(ctx, 2) },
		"SetColor": func() error { return s.SetColor(ctx, 1) },
		"Cancel":   func() error { return s.CancelPrediction(ctx) },
		"Silence":  func() error { return s.SilenceAlarms(ctx) },
		"Logs":     func() error { return s.RequestLogs(ctx, 0, 10) },
		"SessionInfo": func() error {
			_, err := s.ReadSessionInfo(ctx)
			return err
		},
	}

	for name, cmd := range commands {
		if err := cmd(); !protocol.IsType(err, protocol.ErrTypeNotConnected) {
			t.Errorf("%s error = %v, want NotConnected", name, err)
		}
	}
	if got := s.Probe().Snapshot().ID; got != probedata.MinProbeID {
		t.Errorf("failed SetID changed ID to %v", got)
	}
}

func TestSessionCommands(t *testing.T) {
	s, conn := connectedSession(t)
	ctx := context.Background()

	if err := s.SetID(ctx, 6); err != nil {
		t.Fatalf("SetID() error = %v", err)
	}
	if err := s.SetPrediction(ctx, probedata.PredictionModeTimeToRemoval, 63.5); err != nil {
		t.Fatalf("SetPrediction() error = %v", err)
	}
	if err := s.SetPowerMode(ctx, probedata.PowerMode(1)); err != nil {
		t.Fatalf("SetPowerMode() error = %v", err)
	}
	if err := s.ResetFoodSafe(ctx); err != nil {
		t.Fatalf("ResetFoodSafe() error = %v", err)
	}

	wantID, _ := protocol.SetProbeIDRequest(6)
	wantPred, _ := protocol.SetPredictionRequest(probedata.PredictionModeTimeToRemoval, 63.5)
	wantPower, _ := protocol.SetPowerModeRequest(1)
	wantReset, _ := protocol.ResetFoodSafeRequest()
	want := [][]byte{wantID, wantPred, wantPower, wantReset}

	got := conn.written()
	if len(got) != len(want) {
		t.Fatalf("wrote %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("frame %d = %X, want %X", i, got[i], want[i])
		}
	}

	snap := s.Probe().Snapshot()
	if snap.ID != 6 {
		t.Errorf("ID = %v, want 6", snap.ID)
	}
	if snap.Prediction == nil || snap.Prediction.SetPoint != 63.5 {
		t.Errorf("Prediction = %+v, want set point 63.5", snap.Prediction)
	}
	if snap.Preferences == nil || snap.Preferences.PowerMode != 1 {
		t.Errorf("Preferences = %+v", snap.Preferences)
	}
}

func TestSessionInvalidParameters(t *testing.T) {
	s, conn := connectedSession(t)

	if err := s.SetID(context.Background(), 9); err == nil {
		t.Error("SetID(9) should fail")
	}
	if len(conn.written()) != 0 {
		t.Error("invalid command should not be written")
	}
	if got := s.Probe().Snapshot().ID; got == 9 {
		t.Error("invalid ID applied locally")
	}
}

func TestSessionSilenceAlarms(t *testing.T) {
	s, _ := connectedSession(t)

	var table probedata.AlarmTable
	table.High[0] = probedata.AlarmThreshold{Set: true, Tripped: true, Alarming: true, Temperature: 90}
	st := testStatus(1, 0)
	st.Alarms = &table
	s.Probe().ApplyStatus(st)

	if err := s.SilenceAlarms(context.Background()); err != nil {
		t.Fatalf("SilenceAlarms() error = %v", err)
	}
	alarms := s.Probe().Snapshot().Alarms
	if alarms == nil || alarms.Alarming() {
		t.Error("alarms should be silenced locally")
	}
	if !alarms.Tripped() {
		t.Error("silencing should keep tripped flags")
	}
}

func TestSessionStatusNotifications(t *testing.T) {
	s, conn := connectedSession(t)

	conn.push(transport.ProbeStatus, []byte{0x01, 0x02})
	conn.push(transport.ProbeStatus, statusBytes(42))

	eventually(t, "status applied", func() bool {
		return s.Probe().Snapshot().MaxSequence == 42
	})
	snap := s.Probe().Snapshot()
	if snap.ID != 2 || snap.Color != 3 {
		t.Errorf("ID/Color = %v/%v, want 2/3", snap.ID, snap.Color)
	}
}

func TestSessionReadSessionInfo(t *testing.T) {
	s, conn := connectedSession(t)

	want := protocol.SessionInfo{SessionID: 0x12345678, SamplePeriod: time.Second}
	resp, err := protocol.BuildResponse(protocol.MessageTypeReadSessionInfo.Response(), true, want.Bytes())
	if err != nil {
		t.Fatalf("BuildResponse() error = %v", err)
	}
	conn.onWrite = func(c *fakeConn, _ []byte) {
		go func() {
			c.push(transport.UARTTx, append([]byte{0x00, 0x11}, resp[:5]...))
			c.push(transport.UARTTx, resp[5:])
		}()
	}

	got, err := s.ReadSessionInfo(context.Background())
	if err != nil {
		t.Fatalf("ReadSessionInfo() error = %v", err)
	}
	if got != want {
		t.Errorf("ReadSessionInfo() = %+v, want %+v", got, want)
	}
}

func TestSessionReadOverTemperature(t *testing.T) {
	tests := []struct {
		name     string
		success  bool
		wantErr  protocol.ErrorType
		wantBits probedata.Overheat
	}{
		{"success", true, 0, 0x81},
		{"rejected", false, protocol.ErrTypeCommandFailed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, conn := connectedSession(t)
			resp, _ := protocol.BuildResponse(protocol.MessageTypeReadOverTemperature.Response(), tt.success, []byte{0x81})
			conn.onWrite = func(c *fakeConn, _ []byte) {
				go c.push(transport.UARTTx, resp)
			}

			got, err := s.ReadOverTemperature(context.Background())
			if tt.wantErr != 0 {
				if !protocol.IsType(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadOverTemperature() error = %v", err)
			}
			if got != tt.wantBits {
				t.Errorf("ReadOverTemperature() = %#x, want %#x", got, tt.wantBits)
			}
		})
	}
}

func TestSessionResponseTimeout(t *testing.T) {
	conn := newFakeConn()
	cfg := testSessionConfig
	cfg.ResponseTimeout = 20 * time.Millisecond
	s := NewSession(New(testSerial), &fakeDialer{conn: conn}, "AA:BB", cfg)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() { _ = s.Disconnect() }()

	_, err := s.ReadSessionInfo(context.Background())
	if !protocol.IsType(err, protocol.ErrTypeTimeout) {
		t.Errorf("error = %v, want Timeout", err)
	}
}

func TestSessionRequestLogs(t *testing.T) {
	s, conn := connectedSession(t)

	var frames []byte
	for seq := uint32(3); seq <= 5; seq++ {
		rec := protocol.LogRecord{Sequence: seq, Sensors: probedata.InvalidSensors()}
		f, _ := protocol.BuildResponse(protocol.MessageTypeReadLogs.Response(), true, rec.Bytes())
		frames = append(frames, f...)
	}
	conn.onWrite = func(c *fakeConn, _ []byte) {
		go c.push(transport.UARTTx, frames)
	}

	if err := s.RequestLogs(context.Background(), 3, 5); err != nil {
		t.Fatalf("RequestLogs() error = %v", err)
	}
	eventually(t, "log records", func() bool {
		return s.Probe().Log().Len() == 3
	})
	if missing := s.Probe().Log().Missing(3, 5); len(missing) != 0 {
		t.Errorf("Missing() = %v, want none", missing)
	}
}

func TestSessionDisconnect(t *testing.T) {
	s, conn := connectedSession(t)

	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if s.State() != Disconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
	if !conn.closed {
		t.Error("connection should be closed")
	}

	before := s.Probe().Snapshot().MaxSequence
	conn.push(transport.ProbeStatus, statusBytes(before+10))
	time.Sleep(20 * time.Millisecond)
	if got := s.Probe().Snapshot().MaxSequence; got != before {
		t.Errorf("status applied after Disconnect: MaxSequence = %d", got)
	}

	if err := s.SetID(context.Background(), 2); !protocol.IsType(err, protocol.ErrTypeNotConnected) {
		t.Errorf("SetID after Disconnect = %v, want NotConnected", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Errorf("second Disconnect() = %v", err)
	}
}

func TestSessionDisconnectFailsWaiters(t *testing.T) {
	s, conn := connectedSession(t)
	conn.onWrite = func(*fakeConn, []byte) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = s.Disconnect()
		}()
	}

	_, err := s.ReadSessionInfo(context.Background())
	if !protocol.IsType(err, protocol.ErrTypeNotConnected) {
		t.Errorf("error = %v, want NotConnected", err)
	}
}

func TestSessionLostStream(t *testing.T) {
	s, conn := connectedSession(t)

	conn.drop(transport.ProbeStatus)
	eventually(t, "disconnect after lost stream", func() bool {
		return s.State() == Disconnected
	})
}

func TestSessionLostStaleGeneration(t *testing.T) {
	s, conn := connectedSession(t)

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	s.lost(gen - 1)
	if s.State() != Connected {
		t.Fatalf("State() = %v after stale loss, want connected", s.State())
	}
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if closed {
		t.Fatal("stale loss closed the live connection")
	}

	s.lost(gen)
	if s.State() != Disconnected {
		t.Errorf("State() = %v after current loss, want disconnected", s.State())
	}
}

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{Disconnecting, "disconnecting"},
		{SessionState(9), "SessionState(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
