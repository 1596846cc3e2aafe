// Package events is the in-process publish/subscribe channel between the
// node and its outer surfaces (MQTT, web, automation).
package events

import (
	"log/slog"
	"sync"
)

// Event types
const (
	TypeAttribute   = "attribute"
	TypeIdentify    = "identify"
	TypeLifecycle   = "lifecycle"
	TypeSensorError = "sensor_error"
)

// Event is a typed node event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// AttributeData describes an attribute change.
type AttributeData struct {
	Kind        string `json:"kind"`
	EndpointID  uint16 `json:"endpoint"`
	ClusterID   uint32 `json:"cluster_id"`
	Cluster     string `json:"cluster"`
	AttributeID uint32 `json:"attribute_id"`
	Attribute   string `json:"attribute"`
	Value       any    `json:"value"`
}

// IdentifyData describes an identify request.
type IdentifyData struct {
	Count uint64 `json:"count"`
}

// LifecycleData describes a device lifecycle event.
type LifecycleData struct {
	Event       string `json:"event"`
	FabricIndex uint8  `json:"fabric_index,omitempty"`
	Fabrics     int    `json:"fabrics"`
}

// SensorErrorData describes a failed sensor poll.
type SensorErrorData struct {
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// Handler is a callback for events.
type Handler func(Event)

// Bus provides pub/sub for node events.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[string]map[uint64]Handler
	allHandlers map[uint64]Handler
	nextID      uint64
	logger      *slog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		handlers:    make(map[string]map[uint64]Handler),
		allHandlers: make(map[uint64]Handler),
		logger:      logger,
	}
}

// On registers a handler for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) On(eventType string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[uint64]Handler)
	}
	b.handlers[eventType][id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}

// OnAll registers a handler that receives all events.
// Returns an unsubscribe function.
func (b *Bus) OnAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.allHandlers[id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.allHandlers, id)
	}
}

// Emit sends an event to all matching handlers.
// Handlers are called synchronously; a panicking handler is recovered.
func (b *Bus) Emit(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type])+len(b.allHandlers))
	for _, h := range b.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range b.allHandlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panic", "type", event.Type, "panic", r)
				}
			}()
			h(event)
		}()
	}
}
