package clusters

import "matter-sensor-node/internal/datamodel"

var OnOff = datamodel.ClusterDef{
	ID:       0x0006,
	Name:     "On/Off",
	Revision: 5,
	Attributes: []datamodel.AttributeDef{
		{ID: 0x0000, Name: "OnOff", Type: datamodel.ValBool, Access: datamodel.AccessRead | datamodel.AccessWrite | datamodel.AccessReport | datamodel.AccessNonVolatile, Default: false},
		{ID: 0x4003, Name: "StartUpOnOff", Type: datamodel.ValNullableUint8, Access: datamodel.AccessRead | datamodel.AccessWrite | datamodel.AccessNonVolatile, Default: nil},
	},
}

var LevelControl = datamodel.ClusterDef{
	ID:       0x0008,
	Name:     "Level Control",
	Revision: 5,
	Attributes: []datamodel.AttributeDef{
		{ID: 0x0000, Name: "CurrentLevel", Type: datamodel.ValNullableUint8, Access: datamodel.AccessRead | datamodel.AccessWrite | datamodel.AccessReport | datamodel.AccessNonVolatile, Default: uint8(254)},
		{ID: 0x0002, Name: "MinLevel", Type: datamodel.ValUint8, Access: datamodel.AccessRead, Default: uint8(1)},
		{ID: 0x0003, Name: "MaxLevel", Type: datamodel.ValUint8, Access: datamodel.AccessRead, Default: uint8(254)},
		{ID: 0x0011, Name: "OnLevel", Type: datamodel.ValNullableUint8, Access: datamodel.AccessRead | datamodel.AccessWrite, Default: nil},
	},
}

var ColorControl = datamodel.ClusterDef{
	ID:       0x0300,
	Name:     "Color Control",
	Revision: 6,
	Attributes: []datamodel.AttributeDef{
		{ID: 0x0000, Name: "CurrentHue", Type: datamodel.ValUint8, Access: datamodel.AccessRead | datamodel.AccessWrite | datamodel.AccessReport | datamodel.AccessNonVolatile, Default: uint8(0)},
		{ID: 0x0001, Name: "CurrentSaturation", Type: datamodel.ValUint8, Access: datamodel.AccessRead | datamodel.AccessWrite | datamodel.AccessReport | datamodel.AccessNonVolatile, Default: uint8(254)},
		{ID: 0x0007, Name: "ColorTemperatureMireds", Type: datamodel.ValUint16, Access: datamodel.AccessRead | datamodel.AccessWrite | datamodel.AccessReport | datamodel.AccessNonVolatile, Default: uint16(250)},
		{ID: 0x0008, Name: "ColorMode", Type: datamodel.ValEnum8, Access: datamodel.AccessRead | datamodel.AccessWrite | datamodel.AccessNonVolatile, Default: uint8(0)},
		{ID: 0x400A, Name: "ColorCapabilities", Type: datamodel.ValBitmap16, Access: datamodel.AccessRead, Default: uint16(0x0011)},
		{ID: 0x400B, Name: "ColorTempPhysicalMinMireds", Type: datamodel.ValUint16, Access: datamodel.AccessRead, Default: uint16(100)},
		{ID: 0x400C, Name: "ColorTempPhysicalMaxMireds", Type: datamodel.ValUint16, Access: datamodel.AccessRead, Default: uint16(1000)},
	},
}
