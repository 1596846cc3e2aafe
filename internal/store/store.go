package store

import "errors"

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the non-volatile storage used by the device stack.
type Store interface {
	// Attribute values
	SaveAttribute(rec *AttributeRecord) error
	GetAttribute(endpointID uint16, clusterID, attrID uint32) (*AttributeRecord, error)
	ListAttributes(endpointID uint16) ([]*AttributeRecord, error)

	// Fabrics
	SaveFabrics(fabrics []Fabric) error
	ListFabrics() ([]Fabric, error)

	// NodeIdentity returns the persisted identity, creating it on first use.
	NodeIdentity() (*NodeIdentity, error)

	// Close the store
	Close() error
}
