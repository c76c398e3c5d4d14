package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventBotStarted          EventType = "BOT_STARTED"
	EventBotStopped          EventType = "BOT_STOPPED"
	EventCycleStarted        EventType = "CYCLE_STARTED"
	EventCycleCompleted      EventType = "CYCLE_COMPLETED"
	EventOpportunityFound    EventType = "OPPORTUNITY_FOUND"
	EventTradeExecuted       EventType = "TRADE_EXECUTED"
	EventDistributionCreated EventType = "DISTRIBUTION_CREATED"
	EventError               EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishCycleStarted publishes a cycle started event
func (eb *EventBus) PublishCycleStarted(cycleID string) {
	eb.Publish(Event{
		Type: EventCycleStarted,
		Data: map[string]interface{}{
			"cycle_id": cycleID,
		},
	})
}

// PublishCycleCompleted publishes a cycle completed event
func (eb *EventBus) PublishCycleCompleted(cycleID string, opportunities, trades int, profit string) {
	eb.Publish(Event{
		Type: EventCycleCompleted,
		Data: map[string]interface{}{
			"cycle_id":      cycleID,
			"opportunities": opportunities,
			"trades":        trades,
			"profit":        profit,
		},
	})
}

// PublishOpportunityFound publishes an opportunity found event
func (eb *EventBus) PublishOpportunityFound(symbol, market string, price, change float64) {
	eb.Publish(Event{
		Type: EventOpportunityFound,
		Data: map[string]interface{}{
			"symbol": symbol,
			"market": market,
			"price":  price,
			"change": change,
		},
	})
}

// PublishTradeExecuted publishes a trade executed event
func (eb *EventBus) PublishTradeExecuted(tradeID, symbol string, price float64, quantity, value string, confidence float64) {
	eb.Publish(Event{
		Type: EventTradeExecuted,
		Data: map[string]interface{}{
			"trade_id":   tradeID,
			"symbol":     symbol,
			"price":      price,
			"quantity":   quantity,
			"value":      value,
			"confidence": confidence,
		},
	})
}

// PublishDistributionCreated publishes a distribution created event
func (eb *EventBus) PublishDistributionCreated(distributionID, totalProfit, crisisAmount string, allocations int) {
	eb.Publish(Event{
		Type: EventDistributionCreated,
		Data: map[string]interface{}{
			"distribution_id": distributionID,
			"total_profit":    totalProfit,
			"crisis_amount":   crisisAmount,
			"allocations":     allocations,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
