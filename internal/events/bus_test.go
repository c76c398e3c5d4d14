package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishReachesTypedSubscribers(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var received []Event
	done := make(chan struct{}, 1)

	bus.Subscribe(EventTradeExecuted, func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.PublishTradeExecuted("t1", "BTC-USD", 100, "0.5", "50.00", 8)
	bus.PublishCycleStarted("c1") // different type, must not arrive

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received = %d events, want 1", len(received))
	}
	if received[0].Type != EventTradeExecuted {
		t.Errorf("type = %s, want %s", received[0].Type, EventTradeExecuted)
	}
	if received[0].Timestamp.IsZero() {
		t.Error("publish must stamp the event")
	}
	if received[0].Data["symbol"] != "BTC-USD" {
		t.Errorf("data = %v", received[0].Data)
	}
}

func TestSubscribeAllSeesEveryType(t *testing.T) {
	bus := NewEventBus()

	events := make(chan Event, 4)
	bus.SubscribeAll(func(e Event) { events <- e })

	bus.PublishCycleStarted("c1")
	bus.PublishError("bot", "boom", nil)

	seen := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-events:
			seen[e.Type] = true
		case <-time.After(time.Second):
			t.Fatal("missing events")
		}
	}

	if !seen[EventCycleStarted] || !seen[EventError] {
		t.Errorf("seen = %v", seen)
	}
}
