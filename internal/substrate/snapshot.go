package substrate

import (
	"fmt"

	"matter-sensor-node/internal/store"
)

// NodeSnapshot is a point-in-time copy of the node's data model.
type NodeSnapshot struct {
	Started           bool               `json:"started"`
	CommissioningOpen bool               `json:"commissioning_open"`
	Fabrics           []store.Fabric     `json:"fabrics"`
	Endpoints         []EndpointSnapshot `json:"endpoints"`
}

type EndpointSnapshot struct {
	ID          uint16            `json:"id"`
	DeviceTypes []uint32          `json:"device_types"`
	Clusters    []ClusterSnapshot `json:"clusters"`
}

type ClusterSnapshot struct {
	ID         uint32              `json:"id"`
	Name       string              `json:"name"`
	Attributes []AttributeSnapshot `json:"attributes"`
}

type AttributeSnapshot struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    any    `json:"value"`
	Writable bool   `json:"writable"`
}

// Snapshot copies the current state of every endpoint.
func (e *Emulator) Snapshot() NodeSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := NodeSnapshot{
		Started:           e.started,
		CommissioningOpen: e.windowOpen,
		Fabrics:           append([]store.Fabric{}, e.fabrics...),
		Endpoints:         []EndpointSnapshot{},
	}
	for _, ep := range e.endpoints {
		if ep == nil {
			continue
		}
		es := EndpointSnapshot{
			ID:          ep.id,
			DeviceTypes: append([]uint32{}, ep.deviceTypes...),
			Clusters:    make([]ClusterSnapshot, 0, len(ep.clusters)),
		}
		for _, ch := range ep.clusters {
			c := e.clusters[ch]
			cs := ClusterSnapshot{ID: c.id, Name: c.name, Attributes: make([]AttributeSnapshot, 0, len(c.attrs))}
			for _, ah := range c.attrs {
				a := e.attributes[ah]
				v, err := a.val.Value()
				if err != nil {
					v = fmt.Sprintf("% X", a.val.Raw)
				}
				cs.Attributes = append(cs.Attributes, AttributeSnapshot{
					ID:       a.def.ID,
					Name:     a.def.Name,
					Type:     a.val.Type.String(),
					Value:    v,
					Writable: a.def.IsWritable(),
				})
			}
			es.Clusters = append(es.Clusters, cs)
		}
		snap.Endpoints = append(snap.Endpoints, es)
	}
	return snap
}
