package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rytmilabs/rytmi"
)

type (
	EventKind int

	// Event is one observable engine occurrence. Step, bar and pattern
	// events fire on the scheduler's timer goroutine and are the hot path,
	// so the struct is a plain value; only error events carry a pointer.
	Event struct {
		Kind    EventKind
		Step    int            // grid position of the tick
		Bar     int            // bars elapsed since transport started
		Pattern int            // 64-step patterns elapsed since start
		State   TransportState // transport state after the event
		Tempo   float64
		At      time.Time
		Err     *rytmi.ErrorRecord // only on EventError
	}

	// Hub fans events out from the broker to any number of subscribers.
	// Delivery is non-blocking: a subscriber that stops draining its channel
	// loses events rather than stalling the scheduler.
	Hub struct {
		broker *Broker
		mu     sync.Mutex
		subs   map[uuid.UUID]chan Event
	}

	// Subscription is a disposable handle to an event stream. Close detaches
	// it and closes the channel; closing twice is fine.
	Subscription struct {
		id  uuid.UUID
		hub *Hub
	}
)

const (
	EventStep EventKind = iota
	EventBar
	EventPattern
	EventTransport
	EventTempo
	EventError
)

var eventKindNames = [...]string{"step", "bar", "pattern", "transport", "tempo", "error"}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

func NewHub(broker *Broker) *Hub {
	return &Hub{
		broker: broker,
		subs:   map[uuid.UUID]chan Event{},
	}
}

// Run pumps events from the broker to subscribers until CloseHub is signaled
// and then closes every subscriber channel. Run should be called as a
// goroutine; it confirms exit through FinishedHub.
func (h *Hub) Run() {
	defer close(h.broker.FinishedHub)
	for {
		select {
		case ev := <-h.broker.ToHub:
			h.publish(ev)
		case <-h.broker.CloseHub:
			h.mu.Lock()
			for id, c := range h.subs {
				close(c)
				delete(h.subs, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.subs {
		TrySend(c, ev)
	}
}

// Subscribe returns a new event channel with the given buffer. Timing events
// arrive many times a second, so buffers should not be tiny; 64 is plenty
// for a UI.
func (h *Hub) Subscribe(buffer int) (Subscription, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if buffer < 1 {
		buffer = 1
	}
	id := uuid.New()
	c := make(chan Event, buffer)
	h.subs[id] = c
	return Subscription{id: id, hub: h}, c
}

// Close detaches the subscription and closes its channel.
func (s Subscription) Close() error {
	if s.hub == nil {
		return nil
	}
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if c, ok := s.hub.subs[s.id]; ok {
		close(c)
		delete(s.hub.subs, s.id)
	}
	return nil
}
