package matter

import (
	"fmt"

	"matter-sensor-node/internal/datamodel"
	"matter-sensor-node/internal/substrate"
)

// ExtendedColorLight is a dimmable color light endpoint.
type ExtendedColorLight struct {
	appEndpoint
}

// NewExtendedColorLight creates a light endpoint with OnOff, LevelControl
// and ColorControl clusters.
func NewExtendedColorLight(node *Node) (*ExtendedColorLight, error) {
	view, err := node.createEndpoint(ExtendedColorLightDeviceType.raw, nil)
	if err != nil {
		return nil, err
	}
	e := &ExtendedColorLight{}
	e.init(node, view)
	return e, nil
}

// Light returns the typed endpoint view.
func (e *ExtendedColorLight) Light() ColorLight {
	return ColorLight{e.view}
}

func (e *ExtendedColorLight) update(clusterID, attrID uint32, t datamodel.ValType, v any) error {
	val, err := substrate.NewAttrVal(t, v)
	if err != nil {
		return fmt.Errorf("encode 0x%04X/0x%04X: %w", clusterID, attrID, err)
	}
	if err := e.node.sub.UpdateAttribute(e.id, clusterID, attrID, val); err != nil {
		return err
	}
	e.node.logger.Debug("light updated", "endpoint", e.id, "cluster", fmt.Sprintf("0x%04X", clusterID), "attr", fmt.Sprintf("0x%04X", attrID), "value", v)
	return nil
}

// SetOn switches the light locally.
func (e *ExtendedColorLight) SetOn(on bool) error {
	return e.update(OnOffClusterID.raw, OnOffAttrID.raw, datamodel.ValBool, on)
}

// SetLevel sets the current level, 1..254.
func (e *ExtendedColorLight) SetLevel(level uint8) error {
	if level == 0 || level == 255 {
		return fmt.Errorf("level %d out of range 1..254", level)
	}
	return e.update(LevelControlClusterID.raw, CurrentLevelID.raw, datamodel.ValNullableUint8, level)
}

// SetHueSaturation switches to hue/saturation mode.
func (e *ExtendedColorLight) SetHueSaturation(hue, saturation uint8) error {
	if err := e.update(ColorControlClusterID.raw, CurrentHueID.raw, datamodel.ValUint8, hue); err != nil {
		return err
	}
	if err := e.update(ColorControlClusterID.raw, CurrentSaturationID.raw, datamodel.ValUint8, saturation); err != nil {
		return err
	}
	return e.update(ColorControlClusterID.raw, ColorModeID.raw, datamodel.ValEnum8, uint8(ColorModeHueSaturation))
}

// SetColorTemperature switches to color temperature mode.
func (e *ExtendedColorLight) SetColorTemperature(mireds uint16) error {
	if mireds == 0 {
		return fmt.Errorf("color temperature must be positive")
	}
	if err := e.update(ColorControlClusterID.raw, ColorTemperatureMiredsID.raw, datamodel.ValUint16, mireds); err != nil {
		return err
	}
	return e.update(ColorControlClusterID.raw, ColorModeID.raw, datamodel.ValEnum8, uint8(ColorModeColorTemperature))
}
