package matter

import "matter-sensor-node/internal/datamodel/clusters"

// ClusterID is the protocol id of cluster kind C. Values exist only as the
// package-level identifiers below, so a ClusterID can never name a cluster of
// a different kind.
type ClusterID[C any] struct{ raw uint32 }

// Raw returns the protocol identifier.
func (id ClusterID[C]) Raw() uint32 { return id.raw }

// AttributeID is the protocol id of attribute kind A inside cluster kind C.
type AttributeID[C, A any] struct{ raw uint32 }

// Raw returns the protocol identifier.
func (id AttributeID[C, A]) Raw() uint32 { return id.raw }

// DeviceTypeID is the protocol id of the device type implemented by endpoint
// kind T.
type DeviceTypeID[T any] struct{ raw uint32 }

// Raw returns the protocol identifier.
func (id DeviceTypeID[T]) Raw() uint32 { return id.raw }

// Clusters
var (
	IdentifyClusterID     = ClusterID[Identify]{clusters.Identify.ID}
	OnOffClusterID        = ClusterID[OnOff]{clusters.OnOff.ID}
	LevelControlClusterID = ClusterID[LevelControl]{clusters.LevelControl.ID}
	ColorControlClusterID = ClusterID[ColorControl]{clusters.ColorControl.ID}
	TemperatureClusterID  = ClusterID[Temperature]{clusters.TemperatureMeasurement.ID}
	PressureClusterID     = ClusterID[Pressure]{clusters.PressureMeasurement.ID}
	HumidityClusterID     = ClusterID[Humidity]{clusters.RelativeHumidityMeasurement.ID}
)

// Attributes
var (
	IdentifyTimeID = AttributeID[Identify, IdentifyTime]{0x0000}

	OnOffAttrID = AttributeID[OnOff, OnOffState]{0x0000}

	CurrentLevelID = AttributeID[LevelControl, CurrentLevel]{0x0000}

	CurrentHueID             = AttributeID[ColorControl, CurrentHue]{0x0000}
	CurrentSaturationID      = AttributeID[ColorControl, CurrentSaturation]{0x0001}
	ColorTemperatureMiredsID = AttributeID[ColorControl, ColorTemperatureMireds]{0x0007}
	ColorModeID              = AttributeID[ColorControl, ColorModeAttr]{0x0008}

	TemperatureMeasuredValueID = AttributeID[Temperature, TemperatureMeasuredValue]{0x0000}
	PressureMeasuredValueID    = AttributeID[Pressure, PressureMeasuredValue]{0x0000}
	HumidityMeasuredValueID    = AttributeID[Humidity, HumidityMeasuredValue]{0x0000}
)

// Device types
var (
	RootNodeDeviceType           = DeviceTypeID[RootNodeEndpoint]{clusters.RootNode.ID}
	TemperatureSensorDeviceType  = DeviceTypeID[TemperatureSensor]{clusters.TemperatureSensor.ID}
	PressureSensorDeviceType     = DeviceTypeID[PressureSensor]{clusters.PressureSensor.ID}
	HumiditySensorDeviceType     = DeviceTypeID[HumiditySensor]{clusters.HumiditySensor.ID}
	ExtendedColorLightDeviceType = DeviceTypeID[ColorLight]{clusters.ExtendedColorLight.ID}
)
