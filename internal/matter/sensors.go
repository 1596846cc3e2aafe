package matter

import (
	"fmt"
	"math"

	"matter-sensor-node/internal/datamodel"
	"matter-sensor-node/internal/substrate"
)

// SensorEndpoint is an application endpoint publishing measurements.
type SensorEndpoint struct {
	appEndpoint
}

// UpdateAttribute writes value to an attribute of this endpoint. The value
// is encoded with the attribute's declared type. Failures are logged and
// reported as false.
func (s *SensorEndpoint) UpdateAttribute(clusterID, attrID uint32, value int16, unit string) bool {
	val := s.record(clusterID, attrID, value)
	if err := s.node.sub.UpdateAttribute(s.id, clusterID, attrID, val); err != nil {
		s.node.logger.Error("failed to update "+unit, "endpoint", s.id, "value", value, "err", err)
		return false
	}
	s.node.logger.Info(unit+" updated", "endpoint", s.id, "value", value)
	return true
}

func (s *SensorEndpoint) record(clusterID, attrID uint32, value int16) substrate.AttrVal {
	a := s.view.Cluster(clusterID).Attribute(attrID)
	current, err := a.Value()
	if err != nil || current.Type.Base() == datamodel.ValInt16 {
		return substrate.Int16(value)
	}
	val, err := substrate.NewAttrVal(current.Type, value)
	if err != nil {
		return substrate.Int16(value)
	}
	return val
}

// saturate rounds v and clamps it to the int16 range. The lower bound stops
// one short of math.MinInt16, the null marker of nullable int16 attributes.
func saturate(v float64) int16 {
	r := math.Round(v)
	switch {
	case r > math.MaxInt16:
		return math.MaxInt16
	case r < math.MinInt16+1:
		return math.MinInt16 + 1
	}
	return int16(r)
}

func int16Override(clusterID uint32, v int16) map[uint32]map[uint32]substrate.AttrVal {
	return map[uint32]map[uint32]substrate.AttrVal{clusterID: {0x0000: substrate.Int16(v)}}
}

// ExtendedTemperature is a temperature sensor endpoint.
type ExtendedTemperature struct {
	SensorEndpoint
}

// NewExtendedTemperature creates a temperature sensor endpoint reading
// 25.00 °C until the first update.
func NewExtendedTemperature(node *Node) (*ExtendedTemperature, error) {
	view, err := node.createEndpoint(TemperatureSensorDeviceType.raw, int16Override(TemperatureClusterID.raw, 2500))
	if err != nil {
		return nil, err
	}
	e := &ExtendedTemperature{}
	e.init(node, view)
	return e, nil
}

// Temperature returns the temperature measurement cluster.
func (e *ExtendedTemperature) Temperature() Temperature {
	return ClusterOf(e.view, TemperatureClusterID)
}

// UpdateTemperature publishes a reading in degrees Celsius.
func (e *ExtendedTemperature) UpdateTemperature(celsius float32) bool {
	if math.IsNaN(float64(celsius)) {
		e.node.logger.Error("temperature reading is not a number", "endpoint", e.id)
		return false
	}
	// hundredths of a degree
	value := saturate(float64(celsius) * 100)
	return e.UpdateAttribute(TemperatureClusterID.raw, TemperatureMeasuredValueID.raw, value,
		fmt.Sprintf("temperature to %.2f°C", celsius))
}

// ExtendedHumidity is a relative humidity sensor endpoint.
type ExtendedHumidity struct {
	SensorEndpoint
}

// NewExtendedHumidity creates a humidity sensor endpoint reading 50.00 %
// until the first update.
func NewExtendedHumidity(node *Node) (*ExtendedHumidity, error) {
	val, err := substrate.NewAttrVal(datamodel.ValNullableUint16, uint16(5000))
	if err != nil {
		return nil, err
	}
	overrides := map[uint32]map[uint32]substrate.AttrVal{
		HumidityClusterID.raw: {HumidityMeasuredValueID.raw: val},
	}
	view, err := node.createEndpoint(HumiditySensorDeviceType.raw, overrides)
	if err != nil {
		return nil, err
	}
	e := &ExtendedHumidity{}
	e.init(node, view)
	return e, nil
}

func (e *ExtendedHumidity) Humidity() Humidity {
	return ClusterOf(e.view, HumidityClusterID)
}

// UpdateHumidity publishes a relative humidity reading in percent.
func (e *ExtendedHumidity) UpdateHumidity(percent float32) bool {
	if math.IsNaN(float64(percent)) {
		e.node.logger.Error("humidity reading is not a number", "endpoint", e.id)
		return false
	}
	// hundredths of a percent
	value := saturate(float64(percent) * 100)
	return e.UpdateAttribute(HumidityClusterID.raw, HumidityMeasuredValueID.raw, value,
		fmt.Sprintf("humidity to %.2f%%", percent))
}

// ExtendedPressure is a barometric pressure sensor endpoint.
type ExtendedPressure struct {
	SensorEndpoint
}

// NewExtendedPressure creates a pressure sensor endpoint reading 1013 hPa
// until the first update.
func NewExtendedPressure(node *Node) (*ExtendedPressure, error) {
	view, err := node.createEndpoint(PressureSensorDeviceType.raw, int16Override(PressureClusterID.raw, 1013))
	if err != nil {
		return nil, err
	}
	e := &ExtendedPressure{}
	e.init(node, view)
	return e, nil
}

func (e *ExtendedPressure) Pressure() Pressure {
	return ClusterOf(e.view, PressureClusterID)
}

// UpdatePressure publishes a reading in pascals. The attribute unit is
// 0.1 kPa, so 101325 Pa is written as 1013.
func (e *ExtendedPressure) UpdatePressure(pascals float32) bool {
	if math.IsNaN(float64(pascals)) {
		e.node.logger.Error("pressure reading is not a number", "endpoint", e.id)
		return false
	}
	value := saturate(float64(pascals) / 100)
	return e.UpdateAttribute(PressureClusterID.raw, PressureMeasuredValueID.raw, value,
		fmt.Sprintf("pressure to %.0fPa", pascals))
}
