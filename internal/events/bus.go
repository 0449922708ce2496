package events

import (
	"sync"
	"sync/atomic"
)

// mailboxCapacity bounds each subscriber's channel. A slow subscriber never
// blocks the publisher, as with the teacher's SSE event channel
// (make(chan *events.Event, 100) with a non-blocking send): when a mailbox
// is full, Publish evicts its oldest queued event to make room and
// increments Dropped instead of waiting.
const mailboxCapacity = 128

// Subscription is a handle returned by Subscribe. Hold onto it to read
// from C and to Unsubscribe on disconnect.
type Subscription struct {
	id      uint64
	Types   map[EventType]bool // nil means "all types"
	C       chan *Event
	Dropped atomic.Int64
}

// Bus is the Subscription Bus (C8): publishers call Publish, subscribers
// read from their own bounded mailbox until they Unsubscribe.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a new mailbox. Pass a nil/empty types set to receive
// every event type.
func (b *Bus) Subscribe(types ...EventType) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id: b.nextID,
		C:  make(chan *Event, mailboxCapacity),
	}
	if len(types) > 0 {
		sub.Types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.Types[t] = true
		}
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the mailbox. The bus never retains a reference to it
// after this call returns.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub.id)
}

// Publish fans an event out to every matching subscriber without blocking.
// A full mailbox loses its oldest queued event to make room for the new
// one, and that subscriber's Dropped counter advances; other subscribers
// are unaffected.
func (b *Bus) Publish(evt *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.Types != nil && !sub.Types[evt.Type] {
			continue
		}
		select {
		case sub.C <- evt:
		default:
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- evt:
			default:
			}
			sub.Dropped.Add(1)
		}
	}
}
