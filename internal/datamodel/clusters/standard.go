package clusters

import "matter-sensor-node/internal/datamodel"

// RegisterStandard loads every cluster and device type the node exposes.
func RegisterStandard(r *datamodel.Registry) {
	r.Register(Identify)                    // 0x0003
	r.Register(OnOff)                       // 0x0006
	r.Register(LevelControl)                // 0x0008
	r.Register(BasicInformation)            // 0x0028
	r.Register(ColorControl)                // 0x0300
	r.Register(TemperatureMeasurement)      // 0x0402
	r.Register(PressureMeasurement)         // 0x0403
	r.Register(RelativeHumidityMeasurement) // 0x0405

	r.RegisterDeviceType(RootNode)
	r.RegisterDeviceType(ExtendedColorLight)
	r.RegisterDeviceType(TemperatureSensor)
	r.RegisterDeviceType(PressureSensor)
	r.RegisterDeviceType(HumiditySensor)
}
