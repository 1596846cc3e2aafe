package substrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"matter-sensor-node/internal/datamodel"
	"matter-sensor-node/internal/datamodel/clusters"
	"matter-sensor-node/internal/store"
)

// InvalidEndpointID is returned by EndpointID for the nil handle.
const InvalidEndpointID uint16 = 0xFFFF

const defaultQueueSize = 64

// Advertiser publishes the node as commissionable while the commissioning
// window is open.
type Advertiser interface {
	Advertise(info CommissionableInfo) error
	Withdraw()
}

// CommissionableInfo is what a commissioner needs to find the node.
type CommissionableInfo struct {
	Instance      string
	Discriminator uint16
	VendorID      uint16
	ProductID     uint16
	DeviceName    string
	Port          int
}

// NodeInfo populates the Basic Information cluster and the commissionable
// advertisement.
type NodeInfo struct {
	VendorName    string
	VendorID      uint16
	ProductName   string
	ProductID     uint16
	NodeLabel     string
	SerialNumber  string
	UniqueID      string
	Discriminator uint16
	Port          int
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Emulator) { e.logger = l }
}

// WithStore enables non-volatile attribute and fabric storage.
func WithStore(s store.Store) Option {
	return func(e *Emulator) { e.store = s }
}

// WithAdvertiser announces the commissioning window.
func WithAdvertiser(a Advertiser) Option {
	return func(e *Emulator) { e.adv = a }
}

// WithNodeInfo sets the identity reported by the node.
func WithNodeInfo(info NodeInfo) Option {
	return func(e *Emulator) { e.info = info }
}

// WithQueueSize sets the capacity of the event queue.
func WithQueueSize(n int) Option {
	return func(e *Emulator) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

type endpointEntry struct {
	node        NodeHandle
	id          uint16
	flags       EndpointFlags
	priv        any
	deviceTypes []uint32
	clusters    []ClusterHandle
}

type clusterEntry struct {
	endpoint EndpointHandle
	id       uint32
	name     string
	attrs    []AttributeHandle
}

type attributeEntry struct {
	cluster ClusterHandle
	def     datamodel.AttributeDef
	val     AttrVal
}

// Emulator is an in-process Substrate. It owns the handle arenas, the
// process-wide callbacks and the goroutine that delivers them. Arena slots
// are never freed.
type Emulator struct {
	registry  *datamodel.Registry
	store     store.Store
	adv       Advertiser
	info      NodeInfo
	logger    *slog.Logger
	queueSize int

	mu             sync.RWMutex
	node           NodeHandle
	endpoints      []*endpointEntry
	clusters       []*clusterEntry
	attributes     []*attributeEntry
	nextEndpointID uint16
	attrCB         AttributeCallback
	identifyCB     IdentifyCallback
	deviceCB       DeviceEventCallback
	fabrics        []store.Fabric
	windowOpen     bool
	started        bool

	queue    chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewEmulator creates an emulator over the cluster and device-type
// definitions in registry. Persisted fabrics are loaded from the store.
func NewEmulator(registry *datamodel.Registry, opts ...Option) (*Emulator, error) {
	e := &Emulator{
		registry:   registry,
		logger:     slog.New(slog.NewTextHandler(os.Stderr, nil)),
		queueSize:  defaultQueueSize,
		endpoints:  []*endpointEntry{nil},
		clusters:   []*clusterEntry{nil},
		attributes: []*attributeEntry{nil},
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "substrate")
	e.queue = make(chan func(), e.queueSize)

	if e.store != nil {
		fabrics, err := e.store.ListFabrics()
		if err != nil {
			return nil, fmt.Errorf("load fabrics: %w", err)
		}
		e.fabrics = fabrics
	}
	return e, nil
}

// CreateNode creates the single node. A second call fails with ErrNodeExists.
func (e *Emulator) CreateNode() (NodeHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.node.IsNil() {
		return 0, ErrNodeExists
	}
	e.node = 1
	e.logger.Debug("node created")
	return e.node, nil
}

func (e *Emulator) Node() NodeHandle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.node
}

// CreateEndpoint creates an endpoint carrying the server clusters of the
// configured device types. Endpoint ids are assigned sequentially from 0.
func (e *Emulator) CreateEndpoint(node NodeHandle, cfg EndpointConfig, flags EndpointFlags, priv any) (EndpointHandle, error) {
	if len(cfg.DeviceTypes) > MaxDeviceTypes {
		return 0, fmt.Errorf("create endpoint: %d device types: %w", len(cfg.DeviceTypes), ErrTooManyDeviceTypes)
	}

	// Resolve the cluster set before touching the arenas.
	var clusterIDs []uint32
	seen := make(map[uint32]bool)
	for _, dt := range cfg.DeviceTypes {
		def := e.registry.DeviceType(dt)
		if def == nil {
			return 0, fmt.Errorf("create endpoint: device type 0x%04X: %w", dt, ErrNotFound)
		}
		for _, id := range def.Clusters {
			if !seen[id] {
				seen[id] = true
				clusterIDs = append(clusterIDs, id)
			}
		}
	}

	type pendingCluster struct {
		def   *datamodel.ClusterDef
		attrs []attributeEntry
	}
	pending := make([]pendingCluster, 0, len(clusterIDs))
	for _, id := range clusterIDs {
		def := e.registry.Get(id)
		if def == nil {
			return 0, fmt.Errorf("create endpoint: cluster 0x%04X: %w", id, ErrNotFound)
		}
		pc := pendingCluster{def: def}
		for _, a := range def.Attributes {
			val, err := NewAttrVal(a.Type, e.defaultValue(id, a))
			if err != nil {
				return 0, fmt.Errorf("create endpoint: default of 0x%04X/0x%04X: %w", id, a.ID, err)
			}
			pc.attrs = append(pc.attrs, attributeEntry{def: a, val: val})
		}
		pending = append(pending, pc)
	}

	for clusterID, attrs := range cfg.Overrides {
		if !seen[clusterID] {
			return 0, fmt.Errorf("create endpoint: override for cluster 0x%04X: %w", clusterID, ErrNotFound)
		}
		for attrID, val := range attrs {
			if err := applyOverride(pending[indexOf(clusterIDs, clusterID)].attrs, attrID, val); err != nil {
				return 0, fmt.Errorf("create endpoint: override 0x%04X/0x%04X: %w", clusterID, attrID, err)
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if node.IsNil() || node != e.node {
		return 0, fmt.Errorf("create endpoint: node %d: %w", node, ErrNotFound)
	}

	epID := e.nextEndpointID
	if e.store != nil {
		e.restoreLocked(epID, func(clusterID, attrID uint32) *attributeEntry {
			i := indexOf(clusterIDs, clusterID)
			if i < 0 {
				return nil
			}
			for j := range pending[i].attrs {
				if pending[i].attrs[j].def.ID == attrID {
					return &pending[i].attrs[j]
				}
			}
			return nil
		})
	}

	epHandle := EndpointHandle(len(e.endpoints))
	ep := &endpointEntry{
		node:        node,
		id:          epID,
		flags:       flags,
		priv:        priv,
		deviceTypes: append([]uint32(nil), cfg.DeviceTypes...),
	}
	e.endpoints = append(e.endpoints, ep)
	for _, pc := range pending {
		cHandle := ClusterHandle(len(e.clusters))
		c := &clusterEntry{endpoint: epHandle, id: pc.def.ID, name: pc.def.Name}
		e.clusters = append(e.clusters, c)
		for i := range pc.attrs {
			a := pc.attrs[i]
			a.cluster = cHandle
			c.attrs = append(c.attrs, AttributeHandle(len(e.attributes)))
			e.attributes = append(e.attributes, &a)
		}
		ep.clusters = append(ep.clusters, cHandle)
	}
	e.nextEndpointID++

	e.logger.Debug("endpoint created", "endpoint", epID, "device_types", len(cfg.DeviceTypes), "clusters", len(pending))
	return epHandle, nil
}

func (e *Emulator) defaultValue(clusterID uint32, a datamodel.AttributeDef) any {
	if clusterID != clusters.BasicInformation.ID {
		return a.Default
	}
	switch a.ID {
	case 0x0001:
		return e.info.VendorName
	case 0x0002:
		if e.info.VendorID != 0 {
			return e.info.VendorID
		}
	case 0x0003:
		return e.info.ProductName
	case 0x0004:
		if e.info.ProductID != 0 {
			return e.info.ProductID
		}
	case 0x0005:
		return e.info.NodeLabel
	case 0x000F:
		return e.info.SerialNumber
	case 0x0012:
		return e.info.UniqueID
	}
	return a.Default
}

func applyOverride(attrs []attributeEntry, attrID uint32, val AttrVal) error {
	for i := range attrs {
		if attrs[i].def.ID != attrID {
			continue
		}
		v, err := coerce(&attrs[i], val)
		if err != nil {
			return err
		}
		attrs[i].val = v
		return nil
	}
	return ErrNotFound
}

// restoreLocked replaces defaults with persisted non-volatile values.
func (e *Emulator) restoreLocked(epID uint16, find func(clusterID, attrID uint32) *attributeEntry) {
	records, err := e.store.ListAttributes(epID)
	if err != nil {
		e.logger.Warn("restore attributes failed", "endpoint", epID, "err", err)
		return
	}
	for _, rec := range records {
		a := find(rec.ClusterID, rec.AttributeID)
		if a == nil || !a.def.IsNonVolatile() || a.def.Type != datamodel.ValType(rec.Type) {
			continue
		}
		val := AttrVal{Type: datamodel.ValType(rec.Type), Raw: rec.Value}
		if _, err := val.Value(); err != nil {
			continue
		}
		a.val = val.Clone()
		e.logger.Debug("attribute restored", "endpoint", epID, "cluster", fmt.Sprintf("0x%04X", rec.ClusterID), "attr", fmt.Sprintf("0x%04X", rec.AttributeID))
	}
}

func indexOf(ids []uint32, id uint32) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func (e *Emulator) endpoint(h EndpointHandle) *endpointEntry {
	if int(h) >= len(e.endpoints) {
		return nil
	}
	return e.endpoints[h]
}

func (e *Emulator) cluster(h ClusterHandle) *clusterEntry {
	if int(h) >= len(e.clusters) {
		return nil
	}
	return e.clusters[h]
}

func (e *Emulator) attribute(h AttributeHandle) *attributeEntry {
	if int(h) >= len(e.attributes) {
		return nil
	}
	return e.attributes[h]
}

func (e *Emulator) Endpoint(node NodeHandle, id uint16) EndpointHandle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if node.IsNil() || node != e.node {
		return 0
	}
	return e.endpointByIDLocked(id)
}

func (e *Emulator) endpointByIDLocked(id uint16) EndpointHandle {
	for h, ep := range e.endpoints {
		if ep != nil && ep.id == id {
			return EndpointHandle(h)
		}
	}
	return 0
}

func (e *Emulator) EndpointID(h EndpointHandle) uint16 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if ep := e.endpoint(h); ep != nil {
		return ep.id
	}
	return InvalidEndpointID
}

func (e *Emulator) DeviceTypeIDs(h EndpointHandle) ([MaxDeviceTypes]uint32, uint8) {
	var ids [MaxDeviceTypes]uint32
	e.mu.RLock()
	defer e.mu.RUnlock()
	ep := e.endpoint(h)
	if ep == nil {
		return ids, 0
	}
	n := copy(ids[:], ep.deviceTypes)
	return ids, uint8(n)
}

func (e *Emulator) Cluster(h EndpointHandle, id uint32) ClusterHandle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clusterByIDLocked(h, id)
}

func (e *Emulator) clusterByIDLocked(h EndpointHandle, id uint32) ClusterHandle {
	ep := e.endpoint(h)
	if ep == nil {
		return 0
	}
	for _, ch := range ep.clusters {
		if e.clusters[ch].id == id {
			return ch
		}
	}
	return 0
}

func (e *Emulator) ClusterID(h ClusterHandle) uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c := e.cluster(h); c != nil {
		return c.id
	}
	return InvalidClusterID
}

func (e *Emulator) Attribute(h ClusterHandle, id uint32) AttributeHandle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attributeByIDLocked(h, id)
}

func (e *Emulator) attributeByIDLocked(h ClusterHandle, id uint32) AttributeHandle {
	c := e.cluster(h)
	if c == nil {
		return 0
	}
	for _, ah := range c.attrs {
		if e.attributes[ah].def.ID == id {
			return ah
		}
	}
	return 0
}

func (e *Emulator) AttributeValue(h AttributeHandle) (AttrVal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a := e.attribute(h)
	if a == nil {
		return AttrVal{}, fmt.Errorf("attribute handle %d: %w", h, ErrNotFound)
	}
	return a.val.Clone(), nil
}

// lookupLocked resolves a numeric attribute path. Caller holds mu.
func (e *Emulator) lookupLocked(endpointID uint16, clusterID, attrID uint32) (*endpointEntry, *attributeEntry, error) {
	if e.node.IsNil() {
		return nil, nil, fmt.Errorf("node: %w", ErrNotFound)
	}
	epH := e.endpointByIDLocked(endpointID)
	if epH.IsNil() {
		return nil, nil, fmt.Errorf("endpoint %d: %w", endpointID, ErrNotFound)
	}
	cH := e.clusterByIDLocked(epH, clusterID)
	if cH.IsNil() {
		return nil, nil, fmt.Errorf("cluster 0x%04X on endpoint %d: %w", clusterID, endpointID, ErrNotFound)
	}
	aH := e.attributeByIDLocked(cH, attrID)
	if aH.IsNil() {
		return nil, nil, fmt.Errorf("attribute 0x%04X of cluster 0x%04X: %w", attrID, clusterID, ErrNotFound)
	}
	return e.endpoints[epH], e.attributes[aH], nil
}

// coerce checks val against the declared type of a. A value of the base
// type of a nullable attribute is accepted unless it collides with the null
// sentinel; the result always carries the declared type.
func coerce(a *attributeEntry, val AttrVal) (AttrVal, error) {
	want := a.def.Type
	if _, err := val.Value(); err != nil {
		return AttrVal{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	if val.Type == want {
		return val.Clone(), nil
	}
	if !want.Nullable() || val.Type != want.Base() {
		return AttrVal{}, fmt.Errorf("%s into %s: %w", val.Type, want, ErrTypeMismatch)
	}
	out := AttrVal{Type: want, Raw: append([]byte(nil), val.Raw...)}
	if v, err := out.Value(); err != nil || v == nil {
		return AttrVal{}, fmt.Errorf("%s value is the null sentinel of %s: %w", val.Type, want, ErrTypeMismatch)
	}
	return out, nil
}

// UpdateAttribute sets an attribute value from the device side. The value is
// applied before returning; PreUpdate and PostUpdate notifications are queued
// for the event goroutine once the substrate is started.
func (e *Emulator) UpdateAttribute(endpointID uint16, clusterID, attrID uint32, val AttrVal) error {
	e.mu.Lock()
	ep, a, err := e.lookupLocked(endpointID, clusterID, attrID)
	if err == nil {
		val, err = coerce(a, val)
	}
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("update attribute: %w", err)
	}
	a.val = val.Clone()
	nonVolatile := a.def.IsNonVolatile()
	priv := ep.priv
	started := e.started
	e.mu.Unlock()

	if nonVolatile {
		e.persist(endpointID, clusterID, attrID, val)
	}
	if started {
		e.notify(CallbackPreUpdate, endpointID, clusterID, attrID, val, priv)
		e.notify(CallbackPostUpdate, endpointID, clusterID, attrID, val, priv)
	}
	return nil
}

func (e *Emulator) persist(endpointID uint16, clusterID, attrID uint32, val AttrVal) {
	if e.store == nil {
		return
	}
	rec := &store.AttributeRecord{
		EndpointID:  endpointID,
		ClusterID:   clusterID,
		AttributeID: attrID,
		Type:        uint8(val.Type),
		Value:       append([]byte(nil), val.Raw...),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := e.store.SaveAttribute(rec); err != nil {
		e.logger.Warn("persist attribute failed", "endpoint", endpointID, "cluster", fmt.Sprintf("0x%04X", clusterID), "attr", fmt.Sprintf("0x%04X", attrID), "err", err)
	}
}

func (e *Emulator) notify(kind CallbackType, endpointID uint16, clusterID, attrID uint32, val AttrVal, priv any) {
	e.tryEnqueue(func() {
		e.deliverAttribute(kind, endpointID, clusterID, attrID, val, priv)
	})
}

func (e *Emulator) deliverAttribute(kind CallbackType, endpointID uint16, clusterID, attrID uint32, val AttrVal, priv any) error {
	e.mu.RLock()
	cb := e.attrCB
	e.mu.RUnlock()
	if cb == nil {
		return nil
	}
	v := val.Clone()
	err := cb(kind, endpointID, clusterID, attrID, &v, priv)
	if err != nil {
		e.logger.Warn("attribute callback failed", "kind", int(kind), "endpoint", endpointID, "cluster", fmt.Sprintf("0x%04X", clusterID), "err", err)
	}
	return err
}

// tryEnqueue drops the event when the queue is full so that callbacks may
// update attributes without blocking the event goroutine.
func (e *Emulator) tryEnqueue(fn func()) {
	select {
	case <-e.stop:
		return
	default:
	}
	select {
	case e.queue <- fn:
	default:
		e.logger.Warn("event queue full, dropping event")
	}
}

func (e *Emulator) enqueue(ctx context.Context, fn func()) error {
	select {
	case e.queue <- fn:
		return nil
	case <-e.stop:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emulator) SetAttributeCallback(cb AttributeCallback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("set attribute callback: %w", ErrAlreadyStarted)
	}
	e.attrCB = cb
	return nil
}

func (e *Emulator) SetIdentifyCallback(cb IdentifyCallback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("set identify callback: %w", ErrAlreadyStarted)
	}
	e.identifyCB = cb
	return nil
}

// Start begins event processing and registers the lifecycle callback. With
// no commissioned fabric the commissioning window is opened.
func (e *Emulator) Start(cb DeviceEventCallback) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	select {
	case <-e.stop:
		e.mu.Unlock()
		return fmt.Errorf("start after stop: %w", ErrNotStarted)
	default:
	}
	e.started = true
	e.deviceCB = cb
	uncommissioned := len(e.fabrics) == 0
	e.mu.Unlock()

	go e.run()
	e.logger.Info("substrate started", "fabrics", e.FabricCount())

	if uncommissioned {
		if err := e.OpenCommissioningWindow(); err != nil {
			e.logger.Error("open commissioning window", "err", err)
		}
	}
	return nil
}

func (e *Emulator) run() {
	defer close(e.done)
	for {
		select {
		case fn := <-e.queue:
			fn()
		case <-e.stop:
			return
		}
	}
}

// Stop ends event processing and withdraws any advertisement. Queued events
// that have not been delivered are discarded.
func (e *Emulator) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
		e.mu.RLock()
		started := e.started
		e.mu.RUnlock()
		if started {
			<-e.done
		}
		if e.adv != nil {
			e.adv.Withdraw()
		}
	})
}

// Sync waits until every event queued before the call has been delivered.
// It must not be called from a callback.
func (e *Emulator) Sync(ctx context.Context) error {
	if !e.isStarted() {
		return ErrNotStarted
	}
	done := make(chan struct{})
	if err := e.enqueue(ctx, func() { close(done) }); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-e.stop:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emulator) isStarted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started
}

func (e *Emulator) OpenCommissioningWindow() error {
	e.mu.Lock()
	if e.windowOpen {
		e.mu.Unlock()
		return nil
	}
	e.windowOpen = true
	started := e.started
	info := e.commissionableInfoLocked()
	e.mu.Unlock()

	if e.adv != nil {
		if err := e.adv.Advertise(info); err != nil {
			e.mu.Lock()
			e.windowOpen = false
			e.mu.Unlock()
			return fmt.Errorf("advertise: %w", err)
		}
	}
	e.logger.Info("commissioning window open", "discriminator", info.Discriminator)
	if started {
		e.emitDevice(DeviceEvent{Type: DeviceEventCommissioningWindowOpened})
	}
	return nil
}

func (e *Emulator) commissionableInfoLocked() CommissionableInfo {
	instance := e.info.UniqueID
	if instance == "" {
		instance = fmt.Sprintf("%04X%04X", e.info.VendorID, e.info.ProductID)
	}
	name := e.info.NodeLabel
	if name == "" {
		name = e.info.ProductName
	}
	return CommissionableInfo{
		Instance:      instance,
		Discriminator: e.info.Discriminator,
		VendorID:      e.info.VendorID,
		ProductID:     e.info.ProductID,
		DeviceName:    name,
		Port:          e.info.Port,
	}
}

// CommissioningOpen reports whether the commissioning window is open.
func (e *Emulator) CommissioningOpen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.windowOpen
}

func (e *Emulator) FabricCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.fabrics)
}

// Fabrics returns a copy of the commissioned fabrics.
func (e *Emulator) Fabrics() []store.Fabric {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]store.Fabric(nil), e.fabrics...)
}

func (e *Emulator) emitDevice(ev DeviceEvent) {
	e.tryEnqueue(func() {
		e.mu.RLock()
		cb := e.deviceCB
		e.mu.RUnlock()
		if cb != nil {
			cb(&ev)
		}
	})
}

func (e *Emulator) saveFabrics(fabrics []store.Fabric) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveFabrics(fabrics); err != nil {
		e.logger.Warn("persist fabrics failed", "err", err)
	}
}

// Commission simulates a commissioner joining the node to a new fabric
// through the open commissioning window. It returns the new fabric index.
func (e *Emulator) Commission(ctx context.Context, label string) (uint8, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return 0, ErrNotStarted
	}
	if !e.windowOpen {
		e.mu.Unlock()
		return 0, ErrCommissioningClosed
	}
	index := e.nextFabricIndexLocked()
	if index == 0 {
		e.mu.Unlock()
		return 0, fmt.Errorf("commission: no free fabric index")
	}
	e.fabrics = append(e.fabrics, store.Fabric{Index: index, Label: label, CommissionedAt: time.Now().UTC()})
	fabrics := append([]store.Fabric(nil), e.fabrics...)
	e.windowOpen = false
	e.mu.Unlock()

	e.saveFabrics(fabrics)
	if e.adv != nil {
		e.adv.Withdraw()
	}
	e.logger.Info("commissioned", "fabric", index, "label", label)
	e.emitDevice(DeviceEvent{Type: DeviceEventCommissioningWindowClosed})
	e.emitDevice(DeviceEvent{Type: DeviceEventCommissioningComplete, FabricIndex: index})
	return index, nil
}

func (e *Emulator) nextFabricIndexLocked() uint8 {
	used := make(map[uint8]bool, len(e.fabrics))
	for _, f := range e.fabrics {
		used[f.Index] = true
	}
	for i := 1; i <= 254; i++ {
		if !used[uint8(i)] {
			return uint8(i)
		}
	}
	return 0
}

// RemoveFabric simulates a commissioner leaving the fabric with the given
// index.
func (e *Emulator) RemoveFabric(ctx context.Context, index uint8) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotStarted
	}
	pos := -1
	for i, f := range e.fabrics {
		if f.Index == index {
			pos = i
			break
		}
	}
	if pos < 0 {
		e.mu.Unlock()
		return fmt.Errorf("fabric %d: %w", index, ErrNotFound)
	}
	e.fabrics = append(e.fabrics[:pos], e.fabrics[pos+1:]...)
	fabrics := append([]store.Fabric(nil), e.fabrics...)
	e.mu.Unlock()

	e.saveFabrics(fabrics)
	e.logger.Info("fabric removed", "fabric", index, "remaining", len(fabrics))
	e.emitDevice(DeviceEvent{Type: DeviceEventFabricRemoved, FabricIndex: index})
	return nil
}

// Write simulates a controller writing an attribute. The write is delivered
// on the event goroutine as PreUpdate, apply, PostUpdate; a PreUpdate
// callback error rejects it. It must not be called from a callback.
func (e *Emulator) Write(ctx context.Context, endpointID uint16, clusterID, attrID uint32, val AttrVal) error {
	e.mu.RLock()
	started := e.started
	_, a, err := e.lookupLocked(endpointID, clusterID, attrID)
	if err == nil && !a.def.IsWritable() {
		err = fmt.Errorf("attribute 0x%04X of cluster 0x%04X: %w", attrID, clusterID, ErrReadOnly)
	}
	if err == nil {
		val, err = coerce(a, val)
	}
	e.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	result := make(chan error, 1)
	err = e.enqueue(ctx, func() {
		result <- e.applyWrite(endpointID, clusterID, attrID, val)
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-e.stop:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emulator) applyWrite(endpointID uint16, clusterID, attrID uint32, val AttrVal) error {
	e.mu.RLock()
	ep, _, err := e.lookupLocked(endpointID, clusterID, attrID)
	e.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := e.deliverAttribute(CallbackPreUpdate, endpointID, clusterID, attrID, val, ep.priv); err != nil {
		return fmt.Errorf("write rejected: %w", err)
	}

	e.mu.Lock()
	_, a, err := e.lookupLocked(endpointID, clusterID, attrID)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("write: %w", err)
	}
	a.val = val.Clone()
	nonVolatile := a.def.IsNonVolatile()
	e.mu.Unlock()

	if nonVolatile {
		e.persist(endpointID, clusterID, attrID, val)
	}
	e.deliverAttribute(CallbackPostUpdate, endpointID, clusterID, attrID, val, ep.priv)
	return nil
}

// Identify simulates a controller identify request on an endpoint.
func (e *Emulator) Identify(ctx context.Context, endpointID uint16, kind IdentifyCallbackType, effectID, variant uint8) error {
	e.mu.RLock()
	started := e.started
	epH := e.endpointByIDLocked(endpointID)
	var priv any
	if ep := e.endpoint(epH); ep != nil {
		priv = ep.priv
	}
	e.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	if epH.IsNil() {
		return fmt.Errorf("identify endpoint %d: %w", endpointID, ErrNotFound)
	}
	return e.enqueue(ctx, func() {
		e.mu.RLock()
		cb := e.identifyCB
		e.mu.RUnlock()
		if cb == nil {
			return
		}
		if err := cb(kind, endpointID, effectID, variant, priv); err != nil {
			e.logger.Warn("identify callback failed", "endpoint", endpointID, "err", err)
		}
	})
}

// InjectAttributeEvent queues a raw attribute callback exactly as given,
// without validating the path, the kind or priv.
func (e *Emulator) InjectAttributeEvent(ctx context.Context, kind CallbackType, endpointID uint16, clusterID, attrID uint32, val *AttrVal, priv any) error {
	if !e.isStarted() {
		return ErrNotStarted
	}
	return e.enqueue(ctx, func() {
		e.mu.RLock()
		cb := e.attrCB
		e.mu.RUnlock()
		if cb == nil {
			return
		}
		var v *AttrVal
		if val != nil {
			c := val.Clone()
			v = &c
		}
		if err := cb(kind, endpointID, clusterID, attrID, v, priv); err != nil {
			e.logger.Warn("attribute callback failed", "kind", int(kind), "endpoint", endpointID, "err", err)
		}
	})
}
