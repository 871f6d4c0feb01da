package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/muurk/probekit/internal/probe"
)

type fakeToken struct {
	err     error
	release chan struct{}
}

func (t *fakeToken) Wait() bool {
	if t.release != nil {
		<-t.release
	}
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	if t.release == nil {
		return true
	}
	select {
	case <-t.release:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *fakeToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	connectToken *fakeToken
	publishErr   error
	messages     []message
	disconnects  int
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Connect() paho.Token {
	if c.connectToken != nil {
		return c.connectToken
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return &fakeToken{}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{err: c.publishErr}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnects++
}

func (c *fakeClient) sent() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.messages...)
}

func testPublisher(c *fakeClient) *Publisher {
	cfg := Config{Broker: "tcp://test:1883"}
	cfg.applyDefaults()
	return newPublisher(cfg, c)
}

func event(kind probe.EventKind, serial string) probe.Event {
	return probe.Event{Kind: kind, Snapshot: probe.State{Serial: serial, LastUpdate: time.Unix(100, 0).UTC()}}
}

func TestNewRequiresBroker(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without broker should fail")
	}
	p, err := New(Config{Broker: "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.cfg.TopicPrefix != DefaultTopicPrefix || p.cfg.ClientID != DefaultClientID {
		t.Errorf("defaults not applied: %+v", p.cfg)
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name   string
		events []probe.Event
		want   []message
	}{
		{
			name:   "state",
			events: []probe.Event{event(probe.EventStatus, "A1")},
			want:   []message{{topic: "probekit/A1/state"}},
		},
		{
			name:   "discovered",
			events: []probe.Event{event(probe.EventDiscovered, "A1")},
			want:   []message{{topic: "probekit/A1/health", retained: true}},
		},
		{
			name: "stale then fresh",
			events: []probe.Event{
				event(probe.EventStale, "A1"),
				event(probe.EventAdvertising, "A1"),
				event(probe.EventAdvertising, "A1"),
			},
			want: []message{
				{topic: "probekit/A1/health", retained: true},
				{topic: "probekit/A1/state"},
				{topic: "probekit/A1/health", retained: true},
				{topic: "probekit/A1/state"},
			},
		},
		{
			name:   "connection ignored",
			events: []probe.Event{event(probe.EventConnection, "A1")},
		},
		{
			name:   "removed",
			events: []probe.Event{event(probe.EventRemoved, "B2")},
			want:   []message{{topic: "probekit/B2/health", retained: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeClient{connected: true}
			p := testPublisher(c)
			for _, ev := range tt.events {
				if err := p.Handle(ev); err != nil {
					t.Fatalf("Handle(%v) error = %v", ev.Kind, err)
				}
			}

			got := c.sent()
			if len(got) != len(tt.want) {
				t.Fatalf("published %d messages, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				if got[i].topic != w.topic || got[i].retained != w.retained {
					t.Errorf("message %d = %s retained=%t, want %s retained=%t",
						i, got[i].topic, got[i].retained, w.topic, w.retained)
				}
			}
		})
	}
}

func TestHealthPayload(t *testing.T) {
	c := &fakeClient{connected: true}
	p := testPublisher(c)
	if err := p.Handle(event(probe.EventStale, "C3")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	var h Health
	if err := json.Unmarshal(c.sent()[0].payload, &h); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h.Serial != "C3" || h.Healthy || !h.LastSeen.Equal(time.Unix(100, 0)) {
		t.Errorf("health = %+v", h)
	}
}

func TestPublishErrors(t *testing.T) {
	c := &fakeClient{}
	p := testPublisher(c)
	if err := p.Handle(event(probe.EventStatus, "A1")); err == nil {
		t.Error("publish while disconnected should fail")
	}

	c.connected = true
	c.publishErr = errors.New("broker said no")
	if err := p.Handle(event(probe.EventStatus, "A1")); err == nil {
		t.Error("token error should be returned")
	}
}

func TestConnect(t *testing.T) {
	c := &fakeClient{}
	p := testPublisher(c)
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.IsConnected() {
		t.Error("client should be connected")
	}
}

func TestConnectCancelled(t *testing.T) {
	c := &fakeClient{connectToken: &fakeToken{release: make(chan struct{})}}
	p := testPublisher(c)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want deadline exceeded", err)
	}
	if c.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", c.disconnects)
	}
}

func TestConnectAfterDisconnect(t *testing.T) {
	c := &fakeClient{}
	p := testPublisher(c)
	p.Disconnect()
	p.Disconnect()

	if err := p.Connect(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Connect() error = %v, want ErrStopped", err)
	}
}

func TestRun(t *testing.T) {
	c := &fakeClient{connected: true}
	p := testPublisher(c)
	b := probe.NewBroker()
	sub := b.Subscribe(8)

	b.Publish(event(probe.EventStatus, "A1"))
	b.Publish(event(probe.EventStatus, "A2"))
	b.Close()

	if err := p.Run(context.Background(), sub); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(c.sent()); got != 2 {
		t.Errorf("published %d messages, want 2", got)
	}
}
