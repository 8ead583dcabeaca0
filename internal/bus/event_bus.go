package bus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventContractLoaded EventType = "contractLoaded"
	EventContractMiss   EventType = "contractMiss"

	EventToolCall   EventType = "toolCall"
	EventToolResult EventType = "toolResult"

	EventRelayConnected    EventType = "relayConnected"
	EventRelayDisconnected EventType = "relayDisconnected"

	EventBridgeLog EventType = "bridgeLog"
)

// allEventTypes is the subscription set for SubscribeAll.
var allEventTypes = []EventType{
	EventContractLoaded,
	EventContractMiss,
	EventToolCall,
	EventToolResult,
	EventRelayConnected,
	EventRelayDisconnected,
	EventBridgeLog,
}

type Event struct {
	Type    EventType              `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

type EventHandler func(event Event)

// EventBus fans bridge telemetry out to subscribers (the debug API's
// WebSocket hub, tests). Publishing never blocks the caller; a full channel
// drops the event.
type EventBus struct {
	mu        sync.RWMutex
	handlers  map[EventType][]EventHandler
	logger    *logrus.Logger
	eventChan chan Event
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewEventBus(logger *logrus.Logger) *EventBus {
	if logger == nil {
		logger = logrus.New()
	}

	eb := &EventBus{
		handlers:  make(map[EventType][]EventHandler),
		logger:    logger,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
	}

	go eb.processEvents()

	return eb
}

func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	eb.logger.Debugf("Handler subscribed to event type: %s", eventType)
}

func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, eventType := range allEventTypes {
		eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	}
}

func (eb *EventBus) Publish(event Event) {
	select {
	case eb.eventChan <- event:
	default:
		eb.logger.Warnf("Event channel full, dropping event: %s", event.Type)
	}
}

func (eb *EventBus) PublishAsync(eventType EventType, payload map[string]interface{}) {
	go func() {
		eb.Publish(Event{Type: eventType, Payload: payload})
	}()
}

func (eb *EventBus) processEvents() {
	for {
		select {
		case event := <-eb.eventChan:
			eb.handleEvent(event)
		case <-eb.stopChan:
			return
		}
	}
}

func (eb *EventBus) handleEvent(event Event) {
	eb.mu.RLock()
	handlers := eb.handlers[event.Type]
	eb.mu.RUnlock()

	for _, handler := range handlers {
		go func(h EventHandler) {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Errorf("Panic in event handler for %s: %v", event.Type, r)
				}
			}()
			h(event)
		}(handler)
	}
}

func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() {
		close(eb.stopChan)
	})
}

// PublishContractLoaded reports a manifest successfully parsed for origin.
func (eb *EventBus) PublishContractLoaded(origin, appName string, actionCount int) {
	eb.PublishAsync(EventContractLoaded, map[string]interface{}{
		"origin":  origin,
		"app":     appName,
		"actions": actionCount,
	})
}

// PublishToolResult reports one completed tool call.
func (eb *EventBus) PublishToolResult(origin, tool string, ok bool, errMsg string) {
	payload := map[string]interface{}{
		"origin": origin,
		"tool":   tool,
		"ok":     ok,
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	eb.PublishAsync(EventToolResult, payload)
}

// PublishRelayState reports the inner channel coming up or going down.
func (eb *EventBus) PublishRelayState(connected bool, errMsg string) {
	eventType := EventRelayConnected
	payload := map[string]interface{}{}
	if !connected {
		eventType = EventRelayDisconnected
		payload["error"] = errMsg
	}
	eb.PublishAsync(eventType, payload)
}
