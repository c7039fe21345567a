package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventBusDeliversInOrder(t *testing.T) {
	bus := NewEventBus()

	var firstSaw, secondSaw []EventType
	bus.Subscribe(func(ctx context.Context, evt Event) {
		firstSaw = append(firstSaw, evt.Type)
	})
	bus.Subscribe(func(ctx context.Context, evt Event) {
		secondSaw = append(secondSaw, evt.Type)
	})

	bus.Publish(context.Background(), Event{Type: EventCreated, OccurredAt: time.Now()})
	bus.Publish(context.Background(), Event{Type: EventSubmitted, OccurredAt: time.Now()})

	want := []EventType{EventCreated, EventSubmitted}
	assert.Equal(t, want, firstSaw)
	assert.Equal(t, want, secondSaw)
}

func TestEventBusNoListeners(t *testing.T) {
	bus := NewEventBus()

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Type: EventCancelled})
	})
}
