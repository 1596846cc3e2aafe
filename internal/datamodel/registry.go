package datamodel

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the cluster and device-type definitions known to the node.
type Registry struct {
	mu          sync.RWMutex
	clusters    map[uint32]*ClusterDef
	deviceTypes map[uint32]*DeviceTypeDef
	logger      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		clusters:    make(map[uint32]*ClusterDef),
		deviceTypes: make(map[uint32]*DeviceTypeDef),
		logger:      logger,
	}
}

// Register adds a cluster definition. A later definition with the same ID
// contributes only the attributes the existing one lacks.
func (r *Registry) Register(c ClusterDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clusters[c.ID]; ok {
		for _, attr := range c.Attributes {
			if existing.FindAttribute(attr.ID) == nil {
				existing.Attributes = append(existing.Attributes, attr)
			}
		}
		r.logger.Debug("cluster merged", "id", fmt.Sprintf("0x%04X", c.ID), "name", existing.Name)
		return
	}
	r.clusters[c.ID] = c.DeepCopy()
	r.logger.Debug("cluster registered", "id", fmt.Sprintf("0x%04X", c.ID), "name", c.Name)
}

// RegisterDeviceType adds or replaces a device-type definition.
func (r *Registry) RegisterDeviceType(d DeviceTypeDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := d
	cp.Clusters = append([]uint32(nil), d.Clusters...)
	r.deviceTypes[d.ID] = &cp
	r.logger.Debug("device type registered", "id", fmt.Sprintf("0x%04X", d.ID), "name", d.Name)
}

// Get returns a deep copy of a cluster definition, or nil if not found.
func (r *Registry) Get(id uint32) *ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clusters[id]
	if c == nil {
		return nil
	}
	return c.DeepCopy()
}

// DeviceType returns a copy of a device-type definition, or nil if not found.
func (r *Registry) DeviceType(id uint32) *DeviceTypeDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d := r.deviceTypes[id]
	if d == nil {
		return nil
	}
	cp := *d
	cp.Clusters = append([]uint32(nil), d.Clusters...)
	return &cp
}

// All returns deep copies of all cluster definitions ordered by ID.
func (r *Registry) All() []ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ClusterDef, 0, len(r.clusters))
	for _, c := range r.clusters {
		result = append(result, *c.DeepCopy())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ClusterName returns the registered name of a cluster or its hex ID.
func (r *Registry) ClusterName(id uint32) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.clusters[id]; ok {
		return c.Name
	}
	return fmt.Sprintf("0x%04X", id)
}

// AttributeName returns the registered name of an attribute or its hex ID.
func (r *Registry) AttributeName(clusterID, attrID uint32) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.clusters[clusterID]; ok {
		if a := c.FindAttribute(attrID); a != nil {
			return a.Name
		}
	}
	return fmt.Sprintf("0x%04X", attrID)
}

// AttributeType returns the declared value type of an attribute.
func (r *Registry) AttributeType(clusterID, attrID uint32) (ValType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.clusters[clusterID]; ok {
		if a := c.FindAttribute(attrID); a != nil {
			return a.Type, true
		}
	}
	return ValInvalid, false
}
