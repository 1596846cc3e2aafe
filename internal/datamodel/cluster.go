package datamodel

// Access flags
const (
	AccessRead        uint8 = 0x01
	AccessWrite       uint8 = 0x02
	AccessReport      uint8 = 0x04
	AccessNonVolatile uint8 = 0x08 // value survives a restart
)

// AttributeDef defines an attribute of a cluster.
type AttributeDef struct {
	ID      uint32  `json:"id"`
	Name    string  `json:"name"`
	Type    ValType `json:"type"`
	Access  uint8   `json:"access"`
	Default any     `json:"default,omitempty"`
}

// IsWritable returns true if a controller may write the attribute.
func (a *AttributeDef) IsWritable() bool {
	return a.Access&AccessWrite != 0
}

// IsReportable returns true if changes are reported to subscribers.
func (a *AttributeDef) IsReportable() bool {
	return a.Access&AccessReport != 0
}

// IsNonVolatile returns true if the value is persisted.
func (a *AttributeDef) IsNonVolatile() bool {
	return a.Access&AccessNonVolatile != 0
}

// ClusterDef defines a cluster with its attributes.
type ClusterDef struct {
	ID         uint32         `json:"id"`
	Name       string         `json:"name"`
	Revision   uint16         `json:"revision"`
	Attributes []AttributeDef `json:"attributes,omitempty"`
}

// FindAttribute looks up an attribute by ID.
func (c *ClusterDef) FindAttribute(id uint32) *AttributeDef {
	for i := range c.Attributes {
		if c.Attributes[i].ID == id {
			return &c.Attributes[i]
		}
	}
	return nil
}

// DeepCopy returns a deep copy of the cluster definition.
func (c *ClusterDef) DeepCopy() *ClusterDef {
	cp := *c
	if c.Attributes != nil {
		cp.Attributes = make([]AttributeDef, len(c.Attributes))
		copy(cp.Attributes, c.Attributes)
	}
	return &cp
}

// DeviceTypeDef declares a device type and the server clusters an endpoint
// of that type carries.
type DeviceTypeDef struct {
	ID       uint32   `json:"id"`
	Name     string   `json:"name"`
	Revision uint16   `json:"revision"`
	Clusters []uint32 `json:"clusters"`
}
