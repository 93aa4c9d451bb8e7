package account

import (
	"sync"

	"github.com/devmab24/imaginate-portal/internal/models"
)

type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// SessionEvent is pushed on every session transition. An event fully
// supersedes whatever session state the subscriber holds: Session is nil for
// SIGNED_OUT.
type SessionEvent struct {
	Type    EventType       `json:"type"`
	UserID  int64           `json:"user_id"`
	Session *models.Session `json:"session,omitempty"`
}

// Broadcaster is the in-process side of the session-change channel. The
// websocket hub covers other tabs; this covers subscribers inside the same
// process (the portal session manager).
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan SessionEvent
	next int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan SessionEvent)}
}

// Subscribe registers a listener and returns its channel together with an
// unsubscribe func. The unsubscribe func is idempotent, so holders can defer
// it and also call it on an early exit without a double-close.
func (b *Broadcaster) Subscribe() (<-chan SessionEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan SessionEvent, 16)
	b.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}

	return ch, unsubscribe
}

// Publish delivers the event to every subscriber without blocking; a full
// subscriber simply misses the event, mirroring the hub's drop policy.
func (b *Broadcaster) Publish(event SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
