// Package matter is the statically typed binding layer over the device
// substrate: phantom-typed identifiers, entity views, downcasts and the
// callback bridge, plus the node and endpoint composition used by
// applications.
package matter

import (
	"fmt"
	"log/slog"
	"sync"

	"matter-sensor-node/internal/substrate"
)

// AppEndpoint is an application endpoint that can be added to a Node.
type AppEndpoint interface {
	ID() uint16
	View() Endpoint
	handleEvent(AttributeEvent)
}

// Node is the application's root node. Nodes are created once per process
// and live for its duration.
type Node struct {
	sub     substrate.Substrate
	logger  *slog.Logger
	baseLog *slog.Logger
	handle  substrate.NodeHandle
	root    Endpoint
	ctx     *callbackContext

	mu               sync.RWMutex
	endpoints        []AppEndpoint
	identifyHandler  func()
	attributeHandler func(AttributeEvent)
}

// NewNode registers the substrate callbacks and creates the root node.
func NewNode(sub substrate.Substrate, logger *slog.Logger) (*Node, error) {
	n := &Node{
		sub:     sub,
		logger:  logger.With("component", "matter"),
		baseLog: logger,
	}
	n.ctx = &callbackContext{
		attribute: n.dispatchAttribute,
		identify:  n.dispatchIdentify,
	}
	handle, root, err := newRootNode(newBridge(sub, n.logger), n.ctx)
	if err != nil {
		return nil, fmt.Errorf("setup root node: %w", err)
	}
	n.handle = handle
	n.root = root
	n.logger.Info("root node created", "endpoint", root.ID())
	return n, nil
}

// Root returns the root endpoint view.
func (n *Node) Root() Endpoint { return n.root }

// Endpoint resolves an endpoint id to a view, nil if unknown.
func (n *Node) Endpoint(id uint16) Endpoint {
	return Endpoint{sub: n.sub, handle: n.sub.Endpoint(n.handle, id)}
}

// AddEndpoint appends ep. Adding the same endpoint twice lists it twice.
func (n *Node) AddEndpoint(ep AppEndpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.endpoints = append(n.endpoints, ep)
}

// Endpoints returns the added endpoints in insertion order.
func (n *Node) Endpoints() []AppEndpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]AppEndpoint(nil), n.endpoints...)
}

// ReadValue reads and decodes the attribute at the given path. A null value
// decodes to nil.
func (n *Node) ReadValue(endpointID uint16, clusterID, attrID uint32) (any, error) {
	val, err := n.attributeAt(endpointID, clusterID, attrID)
	if err != nil {
		return nil, err
	}
	return val.Value()
}

// UpdateValue encodes v with the attribute's stored type and applies it as a
// local update.
func (n *Node) UpdateValue(endpointID uint16, clusterID, attrID uint32, v any) error {
	cur, err := n.attributeAt(endpointID, clusterID, attrID)
	if err != nil {
		return err
	}
	val, err := substrate.NewAttrVal(cur.Type, v)
	if err != nil {
		return fmt.Errorf("update %d/0x%04X/0x%04X: %w", endpointID, clusterID, attrID, err)
	}
	return n.sub.UpdateAttribute(endpointID, clusterID, attrID, val)
}

func (n *Node) attributeAt(endpointID uint16, clusterID, attrID uint32) (substrate.AttrVal, error) {
	ep := n.Endpoint(endpointID)
	if ep.IsNil() {
		return substrate.AttrVal{}, fmt.Errorf("endpoint %d: %w", endpointID, substrate.ErrNotFound)
	}
	c := ep.Cluster(clusterID)
	if c.IsNil() {
		return substrate.AttrVal{}, fmt.Errorf("cluster 0x%04X on endpoint %d: %w", clusterID, endpointID, substrate.ErrNotFound)
	}
	return c.Attribute(attrID).Value()
}

// SetIdentifyHandler sets the function called on identify requests. A nil
// handler ignores them.
func (n *Node) SetIdentifyHandler(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.identifyHandler = fn
}

// SetAttributeHandler sets the function receiving every attribute event.
func (n *Node) SetAttributeHandler(fn func(AttributeEvent)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attributeHandler = fn
}

func (n *Node) dispatchAttribute(ev AttributeEvent) {
	id := ev.Endpoint.ID()
	n.mu.RLock()
	handler := n.attributeHandler
	var targets []AppEndpoint
	for _, ep := range n.endpoints {
		if ep.ID() == id {
			targets = append(targets, ep)
		}
	}
	n.mu.RUnlock()

	if handler != nil {
		handler(ev)
	}
	for _, ep := range targets {
		ep.handleEvent(ev)
	}
}

func (n *Node) dispatchIdentify(ev IdentifyEvent) {
	n.mu.RLock()
	handler := n.identifyHandler
	n.mu.RUnlock()
	if handler == nil {
		return
	}
	n.logger.Debug("identify", "kind", ev.Kind, "endpoint", ev.EndpointID)
	handler()
}

// createEndpoint creates a substrate endpoint carrying the node's callback
// context.
func (n *Node) createEndpoint(deviceType uint32, overrides map[uint32]map[uint32]substrate.AttrVal) (Endpoint, error) {
	cfg := substrate.EndpointConfig{DeviceTypes: []uint32{deviceType}, Overrides: overrides}
	h, err := n.sub.CreateEndpoint(n.handle, cfg, substrate.EndpointFlagNone, n.ctx)
	if err != nil {
		return Endpoint{}, fmt.Errorf("create endpoint for device type 0x%04X: %w", deviceType, err)
	}
	return Endpoint{sub: n.sub, handle: h}, nil
}

// appEndpoint is the base of every application endpoint.
type appEndpoint struct {
	node *Node
	view Endpoint
	id   uint16

	mu      sync.RWMutex
	handler func(AttributeEvent)
}

func (e *appEndpoint) init(node *Node, view Endpoint) {
	e.node = node
	e.view = view
	e.id = view.ID()
}

func (e *appEndpoint) ID() uint16     { return e.id }
func (e *appEndpoint) View() Endpoint { return e.view }

// SetEventHandler sets the function receiving attribute events addressed to
// this endpoint.
func (e *appEndpoint) SetEventHandler(fn func(AttributeEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = fn
}

func (e *appEndpoint) handleEvent(ev AttributeEvent) {
	e.mu.RLock()
	fn := e.handler
	e.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}
