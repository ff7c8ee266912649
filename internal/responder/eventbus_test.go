package responder

import (
	"sync"
	"testing"
	"time"
)

func TestEventBus_SubscribeAll(t *testing.T) {
	eb := NewEventBus()
	count := 0

	eb.SubscribeAll(func(e Event) {
		count++
	})

	eb.Publish(Event{Type: EventOffTopic})
	eb.Publish(Event{Type: EventMemoryStored})
	eb.Publish(Event{Type: EventResponseGenerated})

	if count != 3 {
		t.Errorf("expected 3 calls, got %d", count)
	}
}

func TestEventBus_PublishWithData(t *testing.T) {
	eb := NewEventBus()
	var received Event

	eb.SubscribeAll(func(e Event) {
		received = e
	})

	eb.PublishWithData(EventContextRecalled, "req-123", map[string]interface{}{"count": 3})

	if received.RequestID != "req-123" {
		t.Errorf("expected request id 'req-123', got %q", received.RequestID)
	}
	if received.Data["count"] != 3 {
		t.Errorf("expected count 3, got %v", received.Data["count"])
	}
	if received.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestEventBus_KeepsTimestamp(t *testing.T) {
	eb := NewEventBus()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var received Event
	eb.SubscribeAll(func(e Event) { received = e })

	eb.Publish(Event{Type: EventOffTopic, Timestamp: ts})
	if !received.Timestamp.Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, received.Timestamp)
	}
}

func TestEventBus_Concurrent(t *testing.T) {
	eb := NewEventBus()
	var mu sync.Mutex
	count := 0

	eb.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eb.Publish(Event{Type: EventMemoryStored})
		}()
	}
	wg.Wait()

	if count != 100 {
		t.Errorf("expected 100 events, got %d", count)
	}
}
