package events

import "sync"

// Backlog keeps the most recent events in a fixed ring.
type Backlog struct {
	mu    sync.RWMutex
	ring  []Event
	added uint64
}

// NewBacklog creates a backlog holding up to capacity events.
func NewBacklog(capacity int) *Backlog {
	if capacity <= 0 {
		capacity = 1
	}
	return &Backlog{ring: make([]Event, capacity)}
}

// Add stores e, overwriting the oldest event once the ring is full.
func (b *Backlog) Add(e Event) {
	b.mu.Lock()
	b.ring[b.added%uint64(len(b.ring))] = e
	b.added++
	b.mu.Unlock()
}

// Len returns how many events are held.
func (b *Backlog) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.held()
}

func (b *Backlog) held() int {
	if b.added < uint64(len(b.ring)) {
		return int(b.added)
	}
	return len(b.ring)
}

// Last returns up to n of the newest events, oldest first. n <= 0 returns
// everything held.
func (b *Backlog) Last(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	held := b.held()
	if n <= 0 || n > held {
		n = held
	}
	out := make([]Event, n)
	size := uint64(len(b.ring))
	first := b.added - uint64(n)
	for i := range out {
		out[i] = b.ring[(first+uint64(i))%size]
	}
	return out
}

// Reset drops every held event.
func (b *Backlog) Reset() {
	b.mu.Lock()
	clear(b.ring)
	b.added = 0
	b.mu.Unlock()
}
