package embedded

import (
	"context"
	"sync"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/logger"
)

// Broker fans realtime events out to every subscriber of a backend.
type Broker interface {
	Publish(ctx context.Context, ev backend.Event) error
	// Subscribe registers fn. fn runs on a goroutine owned by the subscription,
	// in publish order.
	Subscribe(fn func(backend.Event)) (cancel func())
	Close() error
}

const subscriberBuffer = 64

type subscriber struct {
	events chan backend.Event
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// MemoryBroker delivers events to subscribers of the same process.
type MemoryBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

// NewMemoryBroker returns an open broker with no subscribers.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[int]*subscriber)}
}

// Publish queues ev for every subscriber without blocking. A subscriber whose
// buffer is full misses the event; the others still receive it.
func (m *MemoryBroker) Publish(ctx context.Context, ev backend.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	subs := make([]*subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.RUnlock()

	dropped := 0
	for _, s := range subs {
		select {
		case <-s.done:
			continue
		default:
		}
		select {
		case s.events <- ev:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		logger.Warn("Dropped realtime event for slow subscribers", "subscribers", dropped, "events", ev.Events)
	}
	return nil
}

func (m *MemoryBroker) Subscribe(fn func(backend.Event)) func() {
	s := &subscriber{
		events: make(chan backend.Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = s
	m.mu.Unlock()

	go func() {
		for {
			select {
			case ev := <-s.events:
				fn(ev)
			case <-s.done:
				return
			}
		}
	}()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		s.stop()
	}
}

// Subscribers returns the number of live subscriptions
func (m *MemoryBroker) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *MemoryBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for id, s := range m.subs {
		s.stop()
		delete(m.subs, id)
	}
	return nil
}
