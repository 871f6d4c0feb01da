package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/probekit/internal/logging"
	"github.com/muurk/probekit/internal/probe"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// kindSnapshot marks the messages sent when a client first connects
	kindSnapshot = "snapshot"
)

// message is one websocket text frame
type message struct {
	Kind  string    `json:"kind"`
	At    time.Time `json:"at"`
	Probe probeView `json:"probe"`
}

type client struct {
	conn   *websocket.Conn
	remote string
	sub    *probe.Subscription
	log    *zap.Logger
	stop   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.stop) })
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		s.log.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	c := &client{
		conn:   conn,
		remote: r.RemoteAddr,
		sub:    s.manager.Subscribe(s.config.EventBuffer),
		log:    s.log,
		stop:   make(chan struct{}),
	}
	s.track(c)
	logging.LogConnection(c.remote, "websocket_upgraded")

	now := time.Now()
	views := s.views()
	initial := make([]message, 0, len(views))
	for _, v := range views {
		initial = append(initial, message{Kind: kindSnapshot, At: now, Probe: v})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop(s, initial)
	}()

	c.readLoop()
	c.close()
	<-done

	c.sub.Close()
	s.untrack(c)
	if n := c.sub.Dropped(); n > 0 {
		s.log.Warn("Dropped events for slow client",
			zap.String("remote_addr", c.remote),
			zap.Uint64("dropped", n),
		)
	}
	logging.LogConnection(c.remote, "websocket_closed")
}

// readLoop drains control frames until the connection fails. Clients have
// nothing to say, but reading is what processes pongs and close frames.
func (c *client) readLoop() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("WebSocket closed unexpectedly",
					zap.String("remote_addr", c.remote),
					zap.Error(err),
				)
			}
			return
		}
		logging.LogWebSocketMessage(c.remote, "received", mt, data)
	}
}

// writeLoop is the only writer on the connection.
func (c *client) writeLoop(s *Server, initial []message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for _, m := range initial {
		if err := c.write(m); err != nil {
			return
		}
	}

	for {
		select {
		case <-c.stop:
			c.writeClose()
			return
		case ev, ok := <-c.sub.C():
			if !ok {
				c.writeClose()
				return
			}
			m := message{Kind: ev.Kind.String(), At: ev.At, Probe: s.view(ev.Snapshot)}
			if err := c.write(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(m message) error {
	data, err := json.Marshal(m)
	if err != nil {
		c.log.Error("Failed to marshal event", zap.Error(err))
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("WebSocket write failed",
			zap.String("remote_addr", c.remote),
			zap.Error(err),
		)
		return err
	}
	logging.LogWebSocketMessage(c.remote, "sent", websocket.TextMessage, data)
	return nil
}

func (c *client) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
