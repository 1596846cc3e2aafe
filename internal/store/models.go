package store

import "time"

// AttributeRecord is the persisted value of one non-volatile attribute.
type AttributeRecord struct {
	EndpointID  uint16    `cbor:"1,keyasint"`
	ClusterID   uint32    `cbor:"2,keyasint"`
	AttributeID uint32    `cbor:"3,keyasint"`
	Type        uint8     `cbor:"4,keyasint"`
	Value       []byte    `cbor:"5,keyasint"`
	UpdatedAt   time.Time `cbor:"6,keyasint"`
}

// Fabric is a commissioned administrative domain the node belongs to.
type Fabric struct {
	Index          uint8     `cbor:"1,keyasint" json:"index"`
	Label          string    `cbor:"2,keyasint,omitempty" json:"label,omitempty"`
	CommissionedAt time.Time `cbor:"3,keyasint" json:"commissioned_at"`
}

// NodeIdentity is generated on first boot and never changes afterwards.
type NodeIdentity struct {
	UniqueID  string    `cbor:"1,keyasint" json:"unique_id"`
	CreatedAt time.Time `cbor:"2,keyasint" json:"created_at"`
}
