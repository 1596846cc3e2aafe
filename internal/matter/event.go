package matter

import (
	"fmt"

	"matter-sensor-node/internal/substrate"
)

// AttributeEventKind classifies attribute callbacks.
type AttributeEventKind int

const (
	PreUpdate AttributeEventKind = iota
	PostUpdate
	Read
	Write
)

func (k AttributeEventKind) String() string {
	switch k {
	case PreUpdate:
		return "pre_update"
	case PostUpdate:
		return "post_update"
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("attribute_event(%d)", int(k))
}

// decodeAttributeEventKind maps the substrate's raw kind. The set is closed;
// ok is false for anything else.
func decodeAttributeEventKind(raw substrate.CallbackType) (AttributeEventKind, bool) {
	switch raw {
	case substrate.CallbackPreUpdate:
		return PreUpdate, true
	case substrate.CallbackPostUpdate:
		return PostUpdate, true
	case substrate.CallbackRead:
		return Read, true
	case substrate.CallbackWrite:
		return Write, true
	}
	return 0, false
}

// AttributeEvent is an attribute callback resolved to live views.
type AttributeEvent struct {
	Kind        AttributeEventKind
	Endpoint    Endpoint
	Cluster     Cluster
	AttributeID uint32
	// Value is the value carried by the callback, nil when absent.
	Value *substrate.AttrVal
}

// Attribute returns the untyped view of the attribute the event concerns.
func (ev AttributeEvent) Attribute() Attribute {
	return ev.Cluster.Attribute(ev.AttributeID)
}

// IdentifyKind classifies identify callbacks.
type IdentifyKind int

const (
	IdentifyKindStart IdentifyKind = iota
	IdentifyKindStop
	IdentifyKindEffect
)

func (k IdentifyKind) String() string {
	switch k {
	case IdentifyKindStart:
		return "start"
	case IdentifyKindStop:
		return "stop"
	case IdentifyKindEffect:
		return "effect"
	}
	return fmt.Sprintf("identify(%d)", int(k))
}

func decodeIdentifyKind(raw substrate.IdentifyCallbackType) (IdentifyKind, bool) {
	switch raw {
	case substrate.IdentifyStart:
		return IdentifyKindStart, true
	case substrate.IdentifyStop:
		return IdentifyKindStop, true
	case substrate.IdentifyEffect:
		return IdentifyKindEffect, true
	}
	return 0, false
}

// IdentifyEvent is an identify callback.
type IdentifyEvent struct {
	Kind       IdentifyKind
	EndpointID uint16
	EffectID   uint8
	Variant    uint8
}
