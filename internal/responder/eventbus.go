package responder

import (
	"sync"
	"time"
)

// EventType names a responder outcome.
type EventType string

const (
	EventOffTopic          EventType = "off_topic"
	EventMemoryStored      EventType = "memory_stored"
	EventContextRecalled   EventType = "context_recalled"
	EventResponseGenerated EventType = "response_generated"
	EventRequestFailed     EventType = "request_failed"
)

// Event is published once per step outcome.
type Event struct {
	Type      EventType
	Timestamp time.Time
	RequestID string
	Data      map[string]interface{}
}

// EventHandler is a function that handles events.
type EventHandler func(Event)

// EventBus fans events out to subscribers synchronously. Handlers must not
// block; they switch on Event.Type for the outcomes they care about.
type EventBus struct {
	mu          sync.RWMutex
	allHandlers []EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// SubscribeAll registers a handler for all event types.
func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allHandlers = append(eb.allHandlers, handler)
}

func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, handler := range eb.allHandlers {
		handler(event)
	}
}

// PublishWithData publishes an event with associated data.
func (eb *EventBus) PublishWithData(eventType EventType, requestID string, data map[string]interface{}) {
	eb.Publish(Event{
		Type:      eventType,
		RequestID: requestID,
		Data:      data,
	})
}
