package broadcast

import (
	"sync"

	"turtlesoup/internal/events"
)

const bufferSize = 64

// Subscription receives the events addressed to one identity. C is closed
// when the subscription ends, either by Unsubscribe or because the
// subscriber fell too far behind.
type Subscription struct {
	Identity string
	C        chan events.Event
	closed   bool
}

type Broadcaster struct {
	Mu      sync.Mutex
	Clients map[*Subscription]bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		Clients: make(map[*Subscription]bool),
	}
}

func (b *Broadcaster) Subscribe(identity string) *Subscription {
	sub := &Subscription{Identity: identity, C: make(chan events.Event, bufferSize)}
	b.Mu.Lock()
	b.Clients[sub] = true
	b.Mu.Unlock()
	return sub
}

// Unsubscribe is safe to call more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.Mu.Lock()
	defer b.Mu.Unlock()
	b.dropLocked(sub)
}

// UnsubscribeIdentity ends every subscription held by identity.
func (b *Broadcaster) UnsubscribeIdentity(identity string) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for sub := range b.Clients {
		if sub.Identity == identity {
			b.dropLocked(sub)
		}
	}
}

// Publish delivers evs in order. A subscriber whose buffer is full is dropped
// rather than skipped, so no subscriber ever sees a gap in the event stream.
func (b *Broadcaster) Publish(evs ...events.Event) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for _, ev := range evs {
		for sub := range b.Clients {
			if !ev.For(sub.Identity) {
				continue
			}
			select {
			case sub.C <- ev:
			default:
				b.dropLocked(sub)
			}
		}
	}
}

func (b *Broadcaster) Count() int {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	return len(b.Clients)
}

func (b *Broadcaster) CloseAll() {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for sub := range b.Clients {
		b.dropLocked(sub)
	}
}

func (b *Broadcaster) dropLocked(sub *Subscription) {
	delete(b.Clients, sub)
	if !sub.closed {
		sub.closed = true
		close(sub.C)
	}
}
