package service

import (
	"context"
	"sync"
	"time"
)

// EventType names a committed workflow transition.
type EventType string

const (
	EventCreated           EventType = "negotiation.created"
	EventSubmitted         EventType = "negotiation.submitted"
	EventApproved          EventType = "negotiation.approved"
	EventRejected          EventType = "negotiation.rejected"
	EventPartiallyApproved EventType = "negotiation.partially_approved"
	EventRolledBack        EventType = "negotiation.rolled_back"
	EventExpired           EventType = "negotiation.expired"
	EventCancelled         EventType = "negotiation.cancelled"
)

// Event is a domain event emitted synchronously after a transition commits.
// Listeners run after the transaction, so they observe committed state and
// can never roll it back.
type Event struct {
	Type          EventType
	NegotiationID string
	Title         string
	CreatorID     string
	ActorID       string
	ForkID        string // set on partial approval
	CarriedItems  int    // items moved to the fork
	ApprovedItems int    // items kept on the original
	OccurredAt    time.Time
}

// ListenerFunc consumes one event. Listener failures are the listener's
// problem; publication never fails.
type ListenerFunc func(ctx context.Context, evt Event)

// EventBus is an explicit, ordered listener list. No global registry:
// listeners are subscribed at wiring time.
type EventBus struct {
	mu        sync.RWMutex
	listeners []ListenerFunc
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe appends a listener. Listeners run in subscription order.
func (b *EventBus) Subscribe(fn ListenerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Publish delivers the event to every listener, synchronously, in order.
func (b *EventBus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	listeners := make([]ListenerFunc, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, evt)
	}
}
