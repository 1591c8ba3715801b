package events

import (
	"sync"
	"time"
)

// EventType identifies what kind of mapping change occurred for a key.
type EventType string

const (
	EventMappingCreated EventType = "mapping.created"
	EventMappingUpdated EventType = "mapping.updated"
	EventMappingRemoved EventType = "mapping.removed"
	EventMappingEvicted EventType = "mapping.evicted"
)

// Event is a CacheEvent: an asynchronous notification that a key's
// mapping changed, in a named cache, on some tier (heap, disk, or
// clustered).
type Event struct {
	Type      EventType
	Alias     string
	Tier      string // "heap", "disk", or "clustered"
	Key       []byte
	Timestamp time.Time
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker distributes CacheEvents to subscribers: a buffered intake
// channel plus one buffered channel per subscriber, a single dispatch
// goroutine, best-effort delivery (a full subscriber buffer drops the
// event rather than blocking the cache operation that produced it).
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a Broker. Call Start to begin dispatching.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's dispatch loop in its own goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop ends the dispatch loop.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe returns a new per-subscriber event channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes sub.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues event for dispatch, stamping Timestamp if unset.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
