// Package substrate defines the untyped device-management substrate the
// binding layer runs on: nodes, endpoints, clusters and attributes addressed
// by opaque handles and numeric ids, plus the process-wide callbacks.
package substrate

import (
	"errors"
	"fmt"

	"matter-sensor-node/internal/datamodel"
)

// MaxDeviceTypes is the capacity of the device-type id buffer of an endpoint.
const MaxDeviceTypes = 8

// InvalidClusterID is returned by ClusterID for the nil handle.
const InvalidClusterID uint32 = 0xFFFFFFFF

var (
	ErrNodeExists          = errors.New("node already exists")
	ErrNotFound            = errors.New("not found")
	ErrTypeMismatch        = errors.New("value type mismatch")
	ErrReadOnly            = errors.New("attribute is read-only")
	ErrAlreadyStarted      = errors.New("already started")
	ErrNotStarted          = errors.New("not started")
	ErrCommissioningClosed = errors.New("commissioning window closed")
	ErrTooManyDeviceTypes  = errors.New("too many device types")
)

// Handles are arena indices; zero is the nil handle.
type (
	NodeHandle      uint32
	EndpointHandle  uint32
	ClusterHandle   uint32
	AttributeHandle uint32
)

// IsNil reports whether h is the nil handle.
func (h NodeHandle) IsNil() bool      { return h == 0 }
func (h EndpointHandle) IsNil() bool  { return h == 0 }
func (h ClusterHandle) IsNil() bool   { return h == 0 }
func (h AttributeHandle) IsNil() bool { return h == 0 }

// AttrVal is a tagged raw attribute value.
type AttrVal struct {
	Type datamodel.ValType
	Raw  []byte
}

// NewAttrVal encodes v as type t.
func NewAttrVal(t datamodel.ValType, v any) (AttrVal, error) {
	raw, err := datamodel.Encode(t, v)
	if err != nil {
		return AttrVal{}, err
	}
	return AttrVal{Type: t, Raw: raw}, nil
}

// Int16 builds an int16 value.
func Int16(v int16) AttrVal {
	return AttrVal{Type: datamodel.ValInt16, Raw: []byte{byte(v), byte(uint16(v) >> 8)}}
}

// Value decodes the raw bytes; nil means null.
func (v AttrVal) Value() (any, error) {
	return datamodel.Decode(v.Type, v.Raw)
}

func (v AttrVal) String() string {
	val, err := v.Value()
	if err != nil {
		return fmt.Sprintf("%s(% X)", v.Type, v.Raw)
	}
	if val == nil {
		return v.Type.String() + "(null)"
	}
	return fmt.Sprintf("%s(%v)", v.Type, val)
}

// Clone returns a copy that does not share the raw buffer.
func (v AttrVal) Clone() AttrVal {
	return AttrVal{Type: v.Type, Raw: append([]byte(nil), v.Raw...)}
}

// CallbackType is the raw attribute callback kind delivered by the substrate.
type CallbackType int

const (
	CallbackPreUpdate  CallbackType = 0
	CallbackPostUpdate CallbackType = 1
	CallbackRead       CallbackType = 2
	CallbackWrite      CallbackType = 3
)

// IdentifyCallbackType is the raw identify callback kind.
type IdentifyCallbackType int

const (
	IdentifyStart  IdentifyCallbackType = 0
	IdentifyStop   IdentifyCallbackType = 1
	IdentifyEffect IdentifyCallbackType = 2
)

// AttributeCallback is the single process-wide attribute callback. priv is
// the opaque value registered with the endpoint the event concerns.
type AttributeCallback func(kind CallbackType, endpointID uint16, clusterID, attrID uint32, val *AttrVal, priv any) error

// IdentifyCallback is the single process-wide identify callback.
type IdentifyCallback func(kind IdentifyCallbackType, endpointID uint16, effectID, variant uint8, priv any) error

// DeviceEventType enumerates device lifecycle events.
type DeviceEventType int

const (
	DeviceEventCommissioningComplete DeviceEventType = iota + 1
	DeviceEventFabricRemoved
	DeviceEventCommissioningWindowOpened
	DeviceEventCommissioningWindowClosed
)

func (t DeviceEventType) String() string {
	switch t {
	case DeviceEventCommissioningComplete:
		return "commissioning_complete"
	case DeviceEventFabricRemoved:
		return "fabric_removed"
	case DeviceEventCommissioningWindowOpened:
		return "commissioning_window_opened"
	case DeviceEventCommissioningWindowClosed:
		return "commissioning_window_closed"
	}
	return fmt.Sprintf("device_event(%d)", int(t))
}

// DeviceEvent is delivered to the lifecycle callback passed to Start.
type DeviceEvent struct {
	Type        DeviceEventType
	FabricIndex uint8
}

// DeviceEventCallback receives lifecycle events. A nil event is never
// delivered.
type DeviceEventCallback func(ev *DeviceEvent)

// EndpointFlags control endpoint lifetime.
type EndpointFlags uint8

const (
	EndpointFlagNone        EndpointFlags = 0x00
	EndpointFlagDestroyable EndpointFlags = 0x01
)

// EndpointConfig describes an endpoint to create. Clusters of the listed
// device types are created with their default attribute values; Overrides
// replace defaults by attribute, keyed by cluster id.
type EndpointConfig struct {
	DeviceTypes []uint32
	Overrides   map[uint32]map[uint32]AttrVal
}

// Substrate is the untyped device-management substrate.
type Substrate interface {
	// Topology
	CreateNode() (NodeHandle, error)
	Node() NodeHandle
	CreateEndpoint(node NodeHandle, cfg EndpointConfig, flags EndpointFlags, priv any) (EndpointHandle, error)
	Endpoint(node NodeHandle, id uint16) EndpointHandle
	EndpointID(ep EndpointHandle) uint16
	DeviceTypeIDs(ep EndpointHandle) ([MaxDeviceTypes]uint32, uint8)
	Cluster(ep EndpointHandle, id uint32) ClusterHandle
	ClusterID(c ClusterHandle) uint32
	Attribute(c ClusterHandle, id uint32) AttributeHandle
	AttributeValue(a AttributeHandle) (AttrVal, error)

	// Local writes
	UpdateAttribute(endpointID uint16, clusterID, attrID uint32, val AttrVal) error

	// Process-wide callbacks
	SetAttributeCallback(cb AttributeCallback) error
	SetIdentifyCallback(cb IdentifyCallback) error

	// Lifecycle
	Start(cb DeviceEventCallback) error
	OpenCommissioningWindow() error
	FabricCount() int
}
