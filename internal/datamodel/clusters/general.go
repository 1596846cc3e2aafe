package clusters

import "matter-sensor-node/internal/datamodel"

var Identify = datamodel.ClusterDef{
	ID:       0x0003,
	Name:     "Identify",
	Revision: 4,
	Attributes: []datamodel.AttributeDef{
		{ID: 0x0000, Name: "IdentifyTime", Type: datamodel.ValUint16, Access: datamodel.AccessRead | datamodel.AccessWrite, Default: uint16(0)},
		{ID: 0x0001, Name: "IdentifyType", Type: datamodel.ValEnum8, Access: datamodel.AccessRead, Default: uint8(2)},
	},
}

var BasicInformation = datamodel.ClusterDef{
	ID:       0x0028,
	Name:     "Basic Information",
	Revision: 3,
	Attributes: []datamodel.AttributeDef{
		{ID: 0x0001, Name: "VendorName", Type: datamodel.ValCharString, Access: datamodel.AccessRead, Default: ""},
		{ID: 0x0002, Name: "VendorID", Type: datamodel.ValUint16, Access: datamodel.AccessRead, Default: uint16(0xFFF1)},
		{ID: 0x0003, Name: "ProductName", Type: datamodel.ValCharString, Access: datamodel.AccessRead, Default: ""},
		{ID: 0x0004, Name: "ProductID", Type: datamodel.ValUint16, Access: datamodel.AccessRead, Default: uint16(0x8000)},
		{ID: 0x0005, Name: "NodeLabel", Type: datamodel.ValCharString, Access: datamodel.AccessRead | datamodel.AccessWrite | datamodel.AccessNonVolatile, Default: ""},
		{ID: 0x000F, Name: "SerialNumber", Type: datamodel.ValCharString, Access: datamodel.AccessRead, Default: ""},
		{ID: 0x0012, Name: "UniqueID", Type: datamodel.ValCharString, Access: datamodel.AccessRead, Default: ""},
	},
}
