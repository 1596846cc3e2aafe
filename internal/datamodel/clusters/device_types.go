package clusters

import "matter-sensor-node/internal/datamodel"

var RootNode = datamodel.DeviceTypeDef{
	ID:       0x0016,
	Name:     "Root Node",
	Revision: 2,
	Clusters: []uint32{BasicInformation.ID},
}

var TemperatureSensor = datamodel.DeviceTypeDef{
	ID:       0x0302,
	Name:     "Temperature Sensor",
	Revision: 2,
	Clusters: []uint32{Identify.ID, TemperatureMeasurement.ID},
}

var PressureSensor = datamodel.DeviceTypeDef{
	ID:       0x0305,
	Name:     "Pressure Sensor",
	Revision: 2,
	Clusters: []uint32{Identify.ID, PressureMeasurement.ID},
}

var HumiditySensor = datamodel.DeviceTypeDef{
	ID:       0x0307,
	Name:     "Humidity Sensor",
	Revision: 2,
	Clusters: []uint32{Identify.ID, RelativeHumidityMeasurement.ID},
}

var ExtendedColorLight = datamodel.DeviceTypeDef{
	ID:       0x010D,
	Name:     "Extended Color Light",
	Revision: 2,
	Clusters: []uint32{Identify.ID, OnOff.ID, LevelControl.ID, ColorControl.ID},
}
