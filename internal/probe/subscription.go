package probe

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind says what caused an Event.
type EventKind int

const (
	EventAdvertising EventKind = iota
	EventStatus
	EventLocalChange
	EventStale
	EventConnection
	EventDiscovered
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventAdvertising:
		return "advertising"
	case EventStatus:
		return "status"
	case EventLocalChange:
		return "local"
	case EventStale:
		return "stale"
	case EventConnection:
		return "connection"
	case EventDiscovered:
		return "discovered"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event carries a snapshot taken right after the change it reports.
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot State     `json:"snapshot"`
	At       time.Time `json:"at"`
}

// Subscription receives events until Close is called.
type Subscription struct {
	ch      chan Event
	once    sync.Once
	broker  *Broker
	dropped atomic.Uint64
}

// C returns the event channel. It is closed by Close or when the source
// goes away.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close detaches the subscription and closes its channel. After Close
// returns no further events are delivered. Safe to call more than once.
func (s *Subscription) Close() {
	s.broker.detach(s)
}

// Dropped reports how many events were discarded because the buffer was
// full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Broker fans events out to subscriptions. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber with the given channel buffer. On a
// closed broker the returned subscription's channel is already closed.
func (b *Broker) Subscribe(buffer int) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	s := &Subscription{ch: make(chan Event, buffer), broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every subscriber that has room.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription and rejects new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}

func (b *Broker) detach(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
	s.once.Do(func() { close(s.ch) })
}
