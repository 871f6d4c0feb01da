package probe

import (
	"sync"
	"testing"
)

func TestBrokerPublishNonBlocking(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(1)
	defer sub.Close()

	b.Publish(Event{Kind: EventStatus})
	b.Publish(Event{Kind: EventAdvertising})
	b.Publish(Event{Kind: EventStale})

	if got := sub.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	ev := <-sub.C()
	if ev.Kind != EventStatus {
		t.Errorf("first event = %v, want status", ev.Kind)
	}
}

func TestSubscriptionClose(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(4)
	other := b.Subscribe(4)
	defer other.Close()

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}

	sub.Close()
	sub.Close()

	if b.Len() != 1 {
		t.Errorf("Len() after Close = %d, want 1", b.Len())
	}
	b.Publish(Event{Kind: EventStatus})

	if _, ok := <-sub.C(); ok {
		t.Error("closed subscription received an event")
	}
	if ev := <-other.C(); ev.Kind != EventStatus {
		t.Errorf("other subscription got %v", ev.Kind)
	}
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(1)
	b.Close()

	if _, ok := <-sub.C(); ok {
		t.Error("channel should be closed")
	}
	sub.Close()
	b.Publish(Event{})
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestBrokerConcurrentPublishAndClose(t *testing.T) {
	b := NewBroker()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		sub := b.Subscribe(2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish(Event{Kind: EventStatus})
			}
		}()
		go func() {
			defer wg.Done()
			sub.Close()
		}()
	}
	wg.Wait()

	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventAdvertising, "advertising"},
		{EventStatus, "status"},
		{EventLocalChange, "local"},
		{EventStale, "stale"},
		{EventConnection, "connection"},
		{EventDiscovered, "discovered"},
		{EventRemoved, "removed"},
		{EventKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.kind, got, tt.want)
		}
		text, _ := tt.kind.MarshalText()
		if string(text) != tt.want {
			t.Errorf("%d.MarshalText() = %q, want %q", tt.kind, text, tt.want)
		}
	}
}
