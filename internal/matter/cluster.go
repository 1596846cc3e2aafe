package matter

import "matter-sensor-node/internal/substrate"

// Cluster is an untyped view of a substrate cluster. It may wrap the nil
// handle; every accessor re-resolves through the substrate.
type Cluster struct {
	sub    substrate.Substrate
	handle substrate.ClusterHandle
}

// ClusterView is implemented by Cluster and every typed cluster.
type ClusterView interface {
	Untyped() Cluster
}

// ConcreteCluster is the closed set of typed clusters declared in this
// package.
type ConcreteCluster[C any] interface {
	ClusterView
	clusterTypeID() ClusterID[C]
	fromCluster(Cluster) C
}

func (c Cluster) Untyped() Cluster                { return c }
func (c Cluster) Handle() substrate.ClusterHandle { return c.handle }
func (c Cluster) IsNil() bool                     { return c.handle.IsNil() }

// ID returns the protocol id of the cluster, or substrate.InvalidClusterID
// for a nil view.
func (c Cluster) ID() uint32 {
	if c.sub == nil {
		return substrate.InvalidClusterID
	}
	return c.sub.ClusterID(c.handle)
}

// Attribute returns an untyped attribute view.
func (c Cluster) Attribute(id uint32) Attribute {
	return Attribute{sub: c.sub, cluster: c.handle, id: id}
}

// Identify cluster (0x0003).
type Identify struct{ Cluster }

func (Identify) clusterTypeID() ClusterID[Identify] { return IdentifyClusterID }
func (Identify) fromCluster(c Cluster) Identify     { return Identify{c} }
func (c Identify) IdentifyTime() IdentifyTime       { return ReadAttribute(c, IdentifyTimeID) }

// OnOff cluster (0x0006).
type OnOff struct{ Cluster }

func (OnOff) clusterTypeID() ClusterID[OnOff] { return OnOffClusterID }
func (OnOff) fromCluster(c Cluster) OnOff     { return OnOff{c} }
func (c OnOff) OnOff() OnOffState             { return ReadAttribute(c, OnOffAttrID) }

// LevelControl cluster (0x0008).
type LevelControl struct{ Cluster }

func (LevelControl) clusterTypeID() ClusterID[LevelControl] { return LevelControlClusterID }
func (LevelControl) fromCluster(c Cluster) LevelControl     { return LevelControl{c} }
func (c LevelControl) CurrentLevel() CurrentLevel           { return ReadAttribute(c, CurrentLevelID) }

// ColorControl cluster (0x0300).
type ColorControl struct{ Cluster }

func (ColorControl) clusterTypeID() ClusterID[ColorControl] { return ColorControlClusterID }
func (ColorControl) fromCluster(c Cluster) ColorControl     { return ColorControl{c} }
func (c ColorControl) CurrentHue() CurrentHue               { return ReadAttribute(c, CurrentHueID) }
func (c ColorControl) CurrentSaturation() CurrentSaturation {
	return ReadAttribute(c, CurrentSaturationID)
}
func (c ColorControl) ColorTemperatureMireds() ColorTemperatureMireds {
	return ReadAttribute(c, ColorTemperatureMiredsID)
}
func (c ColorControl) ColorMode() ColorModeAttr { return ReadAttribute(c, ColorModeID) }

// Temperature measurement cluster (0x0402).
type Temperature struct{ Cluster }

func (Temperature) clusterTypeID() ClusterID[Temperature] { return TemperatureClusterID }
func (Temperature) fromCluster(c Cluster) Temperature     { return Temperature{c} }
func (c Temperature) MeasuredValue() TemperatureMeasuredValue {
	return ReadAttribute(c, TemperatureMeasuredValueID)
}

// Pressure measurement cluster (0x0403).
type Pressure struct{ Cluster }

func (Pressure) clusterTypeID() ClusterID[Pressure] { return PressureClusterID }
func (Pressure) fromCluster(c Cluster) Pressure     { return Pressure{c} }
func (c Pressure) MeasuredValue() PressureMeasuredValue {
	return ReadAttribute(c, PressureMeasuredValueID)
}

// Relative humidity measurement cluster (0x0405).
type Humidity struct{ Cluster }

func (Humidity) clusterTypeID() ClusterID[Humidity] { return HumidityClusterID }
func (Humidity) fromCluster(c Cluster) Humidity     { return Humidity{c} }
func (c Humidity) MeasuredValue() HumidityMeasuredValue {
	return ReadAttribute(c, HumidityMeasuredValueID)
}
