package events

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Subscriber can subscribe to game events
type Subscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a plain function to a Subscriber
type SubscriberFunc func(Event)

// OnEvent implements Subscriber
func (f SubscriberFunc) OnEvent(event Event) { f(event) }

// Bus manages event publishing and subscription. It is safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]Subscriber
	order       []int
	logger      *log.Logger
}

// NewBus creates a new event bus. A nil logger discards panic reports.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Bus{
		subscribers: make(map[int]Subscriber),
		logger:      logger.WithPrefix("events"),
	}
}

// Subscribe adds a subscriber and returns a function that removes it again
func (b *Bus) Subscribe(sub Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = sub
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of active subscribers
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Publish delivers an event to every subscriber in subscription order.
// A panicking subscriber is logged and does not stop delivery to the rest.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.order))
	for _, id := range b.order {
		subs = append(subs, b.subscribers[id])
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub Subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Subscriber panicked", "event", event.EventType(), "game", event.GameID(), "panic", r)
		}
	}()
	sub.OnEvent(event)
}
