package ble

import (
	"sync"
	"sync/atomic"
)

// DefaultStreamBuffer is the notification channel capacity.
const DefaultStreamBuffer = 32

// stream bridges notification callbacks into a channel. Callbacks never
// block: a notification that finds the buffer full is dropped.
type stream struct {
	mu      sync.Mutex
	ch      chan []byte
	closed  bool
	dropped atomic.Uint64
}

func newStream(buffer int) *stream {
	if buffer <= 0 {
		buffer = DefaultStreamBuffer
	}
	return &stream{ch: make(chan []byte, buffer)}
}

// deliver copies data into the channel. The radio stack reuses its buffer
// after the callback returns.
func (s *stream) deliver(data []byte) {
	buf := append([]byte(nil), data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- buf:
	default:
		s.dropped.Add(1)
	}
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
