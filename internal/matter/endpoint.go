package matter

import "matter-sensor-node/internal/substrate"

// Endpoint is an untyped view of a substrate endpoint.
type Endpoint struct {
	sub    substrate.Substrate
	handle substrate.EndpointHandle
}

// EndpointView is implemented by Endpoint and every typed endpoint.
type EndpointView interface {
	Untyped() Endpoint
}

// ConcreteEndpoint is the closed set of typed endpoints declared in this
// package.
type ConcreteEndpoint[T any] interface {
	EndpointView
	deviceTypeID() DeviceTypeID[T]
	fromEndpoint(Endpoint) T
}

func (e Endpoint) Untyped() Endpoint                { return e }
func (e Endpoint) Handle() substrate.EndpointHandle { return e.handle }
func (e Endpoint) IsNil() bool                      { return e.handle.IsNil() }

// ID returns the endpoint id, or substrate.InvalidEndpointID for a nil view.
func (e Endpoint) ID() uint16 {
	if e.sub == nil {
		return substrate.InvalidEndpointID
	}
	return e.sub.EndpointID(e.handle)
}

// Cluster looks up a cluster by raw id. The result may be nil.
func (e Endpoint) Cluster(id uint32) Cluster {
	if e.sub == nil {
		return Cluster{}
	}
	return Cluster{sub: e.sub, handle: e.sub.Cluster(e.handle, id)}
}

// ClusterOf returns the typed cluster id of endpoint ep. It never fails: a
// missing cluster yields a view over the nil handle.
func ClusterOf[C ConcreteCluster[C]](ep EndpointView, id ClusterID[C]) C {
	var zero C
	return zero.fromCluster(ep.Untyped().Cluster(id.raw))
}

// RootNodeEndpoint is endpoint 0.
type RootNodeEndpoint struct{ Endpoint }

func (RootNodeEndpoint) deviceTypeID() DeviceTypeID[RootNodeEndpoint] { return RootNodeDeviceType }
func (RootNodeEndpoint) fromEndpoint(e Endpoint) RootNodeEndpoint     { return RootNodeEndpoint{e} }

// TemperatureSensor implements device type 0x0302.
type TemperatureSensor struct{ Endpoint }

func (TemperatureSensor) deviceTypeID() DeviceTypeID[TemperatureSensor] {
	return TemperatureSensorDeviceType
}
func (TemperatureSensor) fromEndpoint(e Endpoint) TemperatureSensor { return TemperatureSensor{e} }
func (e TemperatureSensor) Identify() Identify                      { return ClusterOf(e, IdentifyClusterID) }
func (e TemperatureSensor) Temperature() Temperature                { return ClusterOf(e, TemperatureClusterID) }

// PressureSensor implements device type 0x0305.
type PressureSensor struct{ Endpoint }

func (PressureSensor) deviceTypeID() DeviceTypeID[PressureSensor] { return PressureSensorDeviceType }
func (PressureSensor) fromEndpoint(e Endpoint) PressureSensor     { return PressureSensor{e} }
func (e PressureSensor) Identify() Identify                       { return ClusterOf(e, IdentifyClusterID) }
func (e PressureSensor) Pressure() Pressure                       { return ClusterOf(e, PressureClusterID) }

// HumiditySensor implements device type 0x0307.
type HumiditySensor struct{ Endpoint }

func (HumiditySensor) deviceTypeID() DeviceTypeID[HumiditySensor] { return HumiditySensorDeviceType }
func (HumiditySensor) fromEndpoint(e Endpoint) HumiditySensor     { return HumiditySensor{e} }
func (e HumiditySensor) Identify() Identify                       { return ClusterOf(e, IdentifyClusterID) }
func (e HumiditySensor) Humidity() Humidity                       { return ClusterOf(e, HumidityClusterID) }

// ColorLight implements device type 0x010D.
type ColorLight struct{ Endpoint }

func (ColorLight) deviceTypeID() DeviceTypeID[ColorLight] { return ExtendedColorLightDeviceType }
func (ColorLight) fromEndpoint(e Endpoint) ColorLight     { return ColorLight{e} }
func (e ColorLight) Identify() Identify                   { return ClusterOf(e, IdentifyClusterID) }
func (e ColorLight) OnOff() OnOff                         { return ClusterOf(e, OnOffClusterID) }
func (e ColorLight) LevelControl() LevelControl           { return ClusterOf(e, LevelControlClusterID) }
func (e ColorLight) ColorControl() ColorControl           { return ClusterOf(e, ColorControlClusterID) }
