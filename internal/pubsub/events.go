// Package pubsub carries state-change notifications from the registry and the
// orchestrator to whoever renders them.
package pubsub

import (
	"context"
	"time"
)

// EventType names a state change.
type EventType string

const (
	AssetAdded    EventType = "asset_added"
	AssetRemoved  EventType = "asset_removed"
	BatchStarted  EventType = "batch_started"
	JobUpdated    EventType = "job_updated"
	BatchFinished EventType = "batch_finished"
)

// Event is a published state change with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber hands out subscription channels.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher emits events.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
