package clusters

import "matter-sensor-node/internal/datamodel"

var TemperatureMeasurement = datamodel.ClusterDef{
	ID:       0x0402,
	Name:     "Temperature Measurement",
	Revision: 4,
	Attributes: []datamodel.AttributeDef{
		{ID: 0x0000, Name: "MeasuredValue", Type: datamodel.ValNullableInt16, Access: datamodel.AccessRead | datamodel.AccessReport, Default: int16(2500)},
		{ID: 0x0001, Name: "MinMeasuredValue", Type: datamodel.ValNullableInt16, Access: datamodel.AccessRead, Default: int16(-4000)},
		{ID: 0x0002, Name: "MaxMeasuredValue", Type: datamodel.ValNullableInt16, Access: datamodel.AccessRead, Default: int16(8500)},
		{ID: 0x0003, Name: "Tolerance", Type: datamodel.ValUint16, Access: datamodel.AccessRead, Default: uint16(100)},
	},
}

var PressureMeasurement = datamodel.ClusterDef{
	ID:       0x0403,
	Name:     "Pressure Measurement",
	Revision: 3,
	Attributes: []datamodel.AttributeDef{
		{ID: 0x0000, Name: "MeasuredValue", Type: datamodel.ValNullableInt16, Access: datamodel.AccessRead | datamodel.AccessReport, Default: int16(1013)},
		{ID: 0x0001, Name: "MinMeasuredValue", Type: datamodel.ValNullableInt16, Access: datamodel.AccessRead, Default: int16(300)},
		{ID: 0x0002, Name: "MaxMeasuredValue", Type: datamodel.ValNullableInt16, Access: datamodel.AccessRead, Default: int16(1100)},
		{ID: 0x0003, Name: "Tolerance", Type: datamodel.ValUint16, Access: datamodel.AccessRead, Default: uint16(1)},
	},
}

var RelativeHumidityMeasurement = datamodel.ClusterDef{
	ID:       0x0405,
	Name:     "Relative Humidity Measurement",
	Revision: 3,
	Attributes: []datamodel.AttributeDef{
		{ID: 0x0000, Name: "MeasuredValue", Type: datamodel.ValNullableUint16, Access: datamodel.AccessRead | datamodel.AccessReport, Default: uint16(5000)},
		{ID: 0x0001, Name: "MinMeasuredValue", Type: datamodel.ValNullableUint16, Access: datamodel.AccessRead, Default: uint16(0)},
		{ID: 0x0002, Name: "MaxMeasuredValue", Type: datamodel.ValNullableUint16, Access: datamodel.AccessRead, Default: uint16(10000)},
		{ID: 0x0003, Name: "Tolerance", Type: datamodel.ValUint16, Access: datamodel.AccessRead, Default: uint16(300)},
	},
}
