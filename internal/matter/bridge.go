package matter

import (
	"errors"
	"fmt"
	"log/slog"

	"matter-sensor-node/internal/substrate"
)

var errBridgeRegistered = errors.New("callbacks already registered")

// callbackContext carries the closures the substrate callbacks dispatch to.
// It is handed to the substrate as the opaque priv of every endpoint the
// binding layer creates and is never released.
type callbackContext struct {
	attribute func(AttributeEvent)
	identify  func(IdentifyEvent)
}

type bridgeState int

const (
	bridgeUnregistered bridgeState = iota
	bridgeRegistered
)

// bridge adapts the substrate's process-wide callbacks to typed events.
type bridge struct {
	sub    substrate.Substrate
	logger *slog.Logger
	state  bridgeState
}

func newBridge(sub substrate.Substrate, logger *slog.Logger) *bridge {
	return &bridge{sub: sub, logger: logger}
}

// register installs both callbacks. It succeeds once per substrate: a
// substrate that already has a node had its callbacks installed by the
// bridge that created it.
func (b *bridge) register() error {
	if b.state == bridgeRegistered || !b.sub.Node().IsNil() {
		return errBridgeRegistered
	}
	if err := b.sub.SetAttributeCallback(b.onAttribute); err != nil {
		return fmt.Errorf("set attribute callback: %w", err)
	}
	if err := b.sub.SetIdentifyCallback(b.onIdentify); err != nil {
		return fmt.Errorf("set identify callback: %w", err)
	}
	b.state = bridgeRegistered
	return nil
}

// onAttribute resolves an attribute callback. Events for endpoints or
// clusters that no longer resolve are dropped; an unknown kind is fatal.
func (b *bridge) onAttribute(kind substrate.CallbackType, endpointID uint16, clusterID, attrID uint32, val *substrate.AttrVal, priv any) error {
	if priv == nil {
		return nil
	}
	epHandle := b.sub.Endpoint(b.sub.Node(), endpointID)
	if epHandle.IsNil() {
		b.logger.Debug("attribute event for unknown endpoint dropped", "endpoint", endpointID)
		return nil
	}
	ep := Endpoint{sub: b.sub, handle: epHandle}
	cluster := ep.Cluster(clusterID)
	if cluster.IsNil() {
		b.logger.Debug("attribute event for unknown cluster dropped", "endpoint", endpointID, "cluster", fmt.Sprintf("0x%04X", clusterID))
		return nil
	}
	k, ok := decodeAttributeEventKind(kind)
	if !ok {
		panic(fmt.Sprintf("matter: unknown attribute event kind %d", int(kind)))
	}
	ctx, ok := priv.(*callbackContext)
	if !ok {
		b.logger.Debug("attribute event with foreign context dropped", "endpoint", endpointID, "priv", fmt.Sprintf("%T", priv))
		return nil
	}

	b.logger.Debug("attribute event", "kind", k, "endpoint", endpointID, "cluster", fmt.Sprintf("0x%04X", clusterID), "attr", fmt.Sprintf("0x%04X", attrID))
	ctx.attribute(AttributeEvent{
		Kind:        k,
		Endpoint:    ep,
		Cluster:     cluster,
		AttributeID: attrID,
		Value:       val,
	})
	return nil
}

// onIdentify requires the context; identify callbacks only originate from
// endpoints created by the binding layer.
func (b *bridge) onIdentify(kind substrate.IdentifyCallbackType, endpointID uint16, effectID, variant uint8, priv any) error {
	if priv == nil {
		panic("matter: identify callback without context")
	}
	ctx, ok := priv.(*callbackContext)
	if !ok {
		panic(fmt.Sprintf("matter: identify callback with foreign context %T", priv))
	}
	k, ok := decodeIdentifyKind(kind)
	if !ok {
		panic(fmt.Sprintf("matter: unknown identify kind %d", int(kind)))
	}
	ctx.identify(IdentifyEvent{Kind: k, EndpointID: endpointID, EffectID: effectID, Variant: variant})
	return nil
}

// newRootNode registers the callbacks, creates the substrate node and its
// root endpoint carrying ctx.
func newRootNode(b *bridge, ctx *callbackContext) (substrate.NodeHandle, Endpoint, error) {
	if err := b.register(); err != nil {
		return 0, Endpoint{}, err
	}
	node, err := b.sub.CreateNode()
	if err != nil {
		return 0, Endpoint{}, fmt.Errorf("create node: %w", err)
	}
	cfg := substrate.EndpointConfig{DeviceTypes: []uint32{RootNodeDeviceType.raw}}
	h, err := b.sub.CreateEndpoint(node, cfg, substrate.EndpointFlagNone, ctx)
	if err != nil {
		return 0, Endpoint{}, fmt.Errorf("create root endpoint: %w", err)
	}
	return node, Endpoint{sub: b.sub, handle: h}, nil
}
