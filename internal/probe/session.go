package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/probekit/internal/logging"
	"github.com/muurk/probekit/internal/probedata"
	"github.com/muurk/probekit/internal/protocol"
	"github.com/muurk/probekit/internal/transport"
)

// Session defaults.
const (
	DefaultMaxAttempts     = 3
	DefaultRetryDelay      = 1 * time.Second
	DefaultResponseTimeout = 5 * time.Second
)

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	Disconnected SessionState = iota
	Connecting
	Connected
	Disconnecting
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// SessionConfig bounds connection retries and response waits.
type SessionConfig struct {
	MaxAttempts     int
	RetryDelay      time.Duration
	ResponseTimeout time.Duration
}

// DefaultSessionConfig returns the standard retry and timeout settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAttempts:     DefaultMaxAttempts,
		RetryDelay:      DefaultRetryDelay,
		ResponseTimeout: DefaultResponseTimeout,
	}
}

// Session is a connection to one probe. It feeds status notifications into
// the Probe and sends commands over the UART endpoints.
type Session struct {
	probe    *Probe
	dialer   transport.Dialer
	identity string
	cfg      SessionConfig
	log      *zap.Logger

	mu     sync.Mutex
	state  SessionState
	conn   transport.Conn
	cancel context.CancelFunc
	gen    uint64
	wg     sync.WaitGroup

	waitMu  sync.Mutex
	waiters map[protocol.MessageType][]chan *protocol.Response
}

// NewSession prepares a session; nothing is dialled until Connect.
func NewSession(p *Probe, dialer transport.Dialer, identity string, cfg SessionConfig) *Session {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	return &Session{
		probe:    p,
		dialer:   dialer,
		identity: identity,
		cfg:      cfg,
		log:      logging.Named("session").With(zap.String("serial", protocol.FormatSerial(p.Serial()))),
		waiters:  make(map[protocol.MessageType][]chan *protocol.Response),
	}
}

// Probe returns the probe this session feeds.
func (s *Session) Probe() *Probe {
	return s.probe
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect dials the probe and starts the notification listeners. It retries
// up to MaxAttempts times and fails with a ConnectionFailed error after
// that. A call made while another attempt is in flight fails immediately
// with an AlreadyConnecting error.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Connected:
		s.mu.Unlock()
		return nil
	case Connecting, Disconnecting:
		state := s.state
		s.mu.Unlock()
		return protocol.NewError(protocol.ErrTypeAlreadyConnecting, "session is %s", state)
	}
	s.state = Connecting
	s.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err := s.attempt(ctx)
		if err == nil {
			logging.LogConnection(protocol.FormatSerial(s.probe.Serial()), "connected")
			s.probe.publishConnection()
			return nil
		}
		lastErr = err
		s.log.Warn("Connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.cfg.MaxAttempts),
			zap.Error(err),
		)

		if attempt == s.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			s.setState(Disconnected)
			return ctx.Err()
		case <-time.After(s.cfg.RetryDelay):
		}
	}

	s.setState(Disconnected)
	return &protocol.Error{
		Type:    protocol.ErrTypeConnectionFailed,
		Message: fmt.Sprintf("gave up after %d attempts", s.cfg.MaxAttempts),
		Err:     lastErr,
	}
}

func (s *Session) attempt(ctx context.Context) error {
	conn, err := s.dialer.Dial(ctx, s.identity)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.identity, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	status, err := conn.Subscribe(listenCtx, transport.ProbeStatus)
	if err != nil {
		cancel()
		_ = conn.Close()
		return fmt.Errorf("subscribe %s: %w", transport.ProbeStatus, err)
	}
	uart, err := conn.Subscribe(listenCtx, transport.UARTTx)
	if err != nil {
		cancel()
		_ = conn.Close()
		return fmt.Errorf("subscribe %s: %w", transport.UARTTx, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.state = Connected
	s.wg.Add(2)
	s.mu.Unlock()

	go s.listenStatus(listenCtx, gen, status)
	go s.listenUART(listenCtx, gen, uart)
	return nil
}

// Disconnect stops the listeners, closes the connection and waits for both
// listener goroutines to exit. No probe state changes after it returns.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return nil
	}
	return s.teardown()
}

// disconnectGen disconnects only while connection gen is still the live one.
func (s *Session) disconnectGen(gen uint64) error {
	s.mu.Lock()
	if s.gen != gen || s.state != Connected {
		s.mu.Unlock()
		return nil
	}
	return s.teardown()
}

// teardown must be called with s.mu held and the session connected; it
// releases s.mu.
func (s *Session) teardown() error {
	s.state = Disconnecting
	conn, cancel := s.conn, s.cancel
	s.mu.Unlock()

	cancel()
	err := conn.Close()
	s.wg.Wait()
	s.failWaiters()

	s.mu.Lock()
	s.conn = nil
	s.cancel = nil
	s.state = Disconnected
	s.mu.Unlock()

	logging.LogConnection(protocol.FormatSerial(s.probe.Serial()), "disconnected")
	s.probe.publishConnection()
	return err
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// lost tears the session down after a stream ended on its own. gen guards
// against tearing down a newer connection.
func (s *Session) lost(gen uint64) {
	s.log.Warn("Notification stream ended", zap.Uint64("generation", gen))
	if err := s.disconnectGen(gen); err != nil {
		s.log.Debug("Close after lost stream failed", zap.Error(err))
	}
}

func (s *Session) listenStatus(ctx context.Context, gen uint64, ch <-chan []byte) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-ch:
			if !ok {
				go s.lost(gen)
				return
			}
			st, err := protocol.ParseStatus(data)
			if err != nil {
				s.log.Debug("Skipping status notification", zap.Error(err), zap.Int("length", len(data)))
				continue
			}
			s.probe.ApplyStatus(st)
		}
	}
}

func (s *Session) listenUART(ctx context.Context, gen uint64, ch <-chan []byte) {
	defer s.wg.Done()
	decoder := protocol.NewDecoder()
	serial := protocol.FormatSerial(s.probe.Serial())
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-ch:
			if !ok {
				go s.lost(gen)
				return
			}
			logging.LogFrame(serial, "rx", data)
			responses, errs := decoder.Feed(data)
			for _, err := range errs {
				s.log.Debug("Skipping UART frame", zap.Error(err))
			}
			for _, resp := range responses {
				s.handleResponse(resp)
			}
		}
	}
}

func (s *Session) handleResponse(resp *protocol.Response) {
	if !resp.Success {
		s.log.Warn("Probe rejected request", zap.Stringer("type", resp.Type))
	}
	if resp.Type == protocol.MessageTypeReadLogs.Response() && resp.Success {
		rec, err := protocol.ParseLogRecord(resp.Payload)
		if err != nil {
			s.log.Debug("Skipping log record", zap.Error(err))
		} else {
			s.probe.log.Add(rec)
		}
	}
	s.deliver(resp)
}

func (s *Session) await(t protocol.MessageType) chan *protocol.Response {
	ch := make(chan *protocol.Response, 1)
	s.waitMu.Lock()
	s.waiters[t] = append(s.waiters[t], ch)
	s.waitMu.Unlock()
	return ch
}

func (s *Session) cancelWait(t protocol.MessageType, ch chan *protocol.Response) {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	list := s.waiters[t]
	for i, c := range list {
		if c == ch {
			s.waiters[t] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (s *Session) deliver(resp *protocol.Response) {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	list := s.waiters[resp.Type]
	if len(list) == 0 {
		return
	}
	list[0] <- resp
	s.waiters[resp.Type] = list[1:]
}

func (s *Session) failWaiters() {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	for t, list := range s.waiters {
		for _, ch := range list {
			close(ch)
		}
		delete(s.waiters, t)
	}
}

func (s *Session) send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	if s.state != Connected {
		state := s.state
		s.mu.Unlock()
		return protocol.NewError(protocol.ErrTypeNotConnected, "session is %s", state)
	}
	conn := s.conn
	s.mu.Unlock()

	logging.LogFrame(protocol.FormatSerial(s.probe.Serial()), "tx", data)
	if err := conn.Write(ctx, transport.UARTRx, data); err != nil {
		return fmt.Errorf("write %s: %w", transport.UARTRx, err)
	}
	return nil
}

// request sends data and waits for the response of type t.
func (s *Session) request(ctx context.Context, t protocol.MessageType, data []byte) (*protocol.Response, error) {
	respType := t.Response()
	ch := s.await(respType)
	if err := s.send(ctx, data); err != nil {
		s.cancelWait(respType, ch)
		return nil, err
	}

	timer := time.NewTimer(s.cfg.ResponseTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, protocol.NewError(protocol.ErrTypeNotConnected, "disconnected while waiting for %s", respType)
		}
		return resp, nil
	case <-timer.C:
		s.cancelWait(respType, ch)
		return nil, protocol.NewError(protocol.ErrTypeTimeout, "no %s within %s", respType, s.cfg.ResponseTimeout)
	case <-ctx.Done():
		s.cancelWait(respType, ch)
		return nil, ctx.Err()
	}
}

// command builds a request, sends it and applies fn once the write is
// accepted.
func (s *Session) command(ctx context.Context, build func() ([]byte, error), apply func()) error {
	data, err := build()
	if err != nil {
		return err
	}
	if err := s.send(ctx, data); err != nil {
		return err
	}
	if apply != nil {
		apply()
	}
	return nil
}

// SetID assigns the probe ID (1-8).
func (s *Session) SetID(ctx context.Context, id probedata.ProbeID) error {
	return s.command(ctx,
		func() ([]byte, error) { return protocol.SetProbeIDRequest(id) },
		func() { s.probe.SetIDLocal(id) })
}

// SetColor sets the probe's ring colour.
func (s *Session) SetColor(ctx context.Context, c probedata.ProbeColor) error {
	return s.command(ctx,
		func() ([]byte, error) { return protocol.SetProbeColorRequest(c) },
		func() { s.probe.SetColorLocal(c) })
}

// SetPrediction starts a prediction toward setPoint °C.
func (s *Session) SetPrediction(ctx context.Context, mode probedata.PredictionMode, setPoint float64) error {
	return s.command(ctx,
		func() ([]byte, error) { return protocol.SetPredictionRequest(mode, setPoint) },
		func() { s.probe.setPrediction(mode, setPoint) })
}

// CancelPrediction stops any running prediction.
func (s *Session) CancelPrediction(ctx context.Context) error {
	return s.command(ctx, protocol.CancelPredictionRequest,
		func() { s.probe.setPrediction(probedata.PredictionModeNone, 0) })
}

// SetAlarms writes the full alarm table.
func (s *Session) SetAlarms(ctx context.Context, table probedata.AlarmTable) error {
	return s.command(ctx,
		func() ([]byte, error) { return protocol.SetAlarmsRequest(table) },
		func() { s.probe.setAlarms(table) })
}

// SilenceAlarms silences every sounding alarm.
func (s *Session) SilenceAlarms(ctx context.Context) error {
	return s.command(ctx, protocol.SilenceAlarmsRequest, func() {
		if snap := s.probe.Snapshot(); snap.Alarms != nil {
			s.probe.setAlarms(snap.Alarms.Silenced())
		}
	})
}

// ConfigureFoodSafe loads a food-safe program.
func (s *Session) ConfigureFoodSafe(ctx context.Context, cfg probedata.FoodSafeConfig) error {
	return s.command(ctx,
		func() ([]byte, error) { return protocol.ConfigureFoodSafeRequest(cfg) },
		func() { s.probe.setFoodSafeConfig(cfg) })
}

// ResetFoodSafe clears the food-safe program. Local state is left for the
// next status notification to correct.
func (s *Session) ResetFoodSafe(ctx context.Context) error {
	return s.command(ctx, protocol.ResetFoodSafeRequest, nil)
}

// SetPowerMode sets the probe's power mode.
func (s *Session) SetPowerMode(ctx context.Context, mode probedata.PowerMode) error {
	return s.command(ctx,
		func() ([]byte, error) { return protocol.SetPowerModeRequest(mode) },
		func() { s.probe.setPowerMode(mode) })
}

// ResetThermometer restores factory settings.
func (s *Session) ResetThermometer(ctx context.Context) error {
	return s.command(ctx, protocol.ResetThermometerRequest, nil)
}

// RequestLogs asks for records in [first, last]. Records arrive
// asynchronously and are added to the probe's Log.
func (s *Session) RequestLogs(ctx context.Context, first, last uint32) error {
	return s.command(ctx,
		func() ([]byte, error) { return protocol.ReadLogsRequest(first, last) }, nil)
}

// ReadSessionInfo queries the probe's logging session.
func (s *Session) ReadSessionInfo(ctx context.Context) (protocol.SessionInfo, error) {
	data, err := protocol.ReadSessionInfoRequest()
	if err != nil {
		return protocol.SessionInfo{}, err
	}
	resp, err := s.request(ctx, protocol.MessageTypeReadSessionInfo, data)
	if err != nil {
		return protocol.SessionInfo{}, err
	}
	v, err := resp.Decode()
	if err != nil {
		return protocol.SessionInfo{}, err
	}
	info, ok := v.(protocol.SessionInfo)
	if !ok {
		return protocol.SessionInfo{}, errors.New("unexpected session info payload")
	}
	return info, nil
}

// ReadOverTemperature asks which sensors have overheated.
func (s *Session) ReadOverTemperature(ctx context.Context) (probedata.Overheat, error) {
	data, err := protocol.ReadOverTemperatureRequest()
	if err != nil {
		return 0, err
	}
	resp, err := s.request(ctx, protocol.MessageTypeReadOverTemperature, data)
	if err != nil {
		return 0, err
	}
	v, err := resp.Decode()
	if err != nil {
		return 0, err
	}
	o, ok := v.(probedata.Overheat)
	if !ok {
		return 0, errors.New("unexpected over temperature payload")
	}
	return o, nil
}
