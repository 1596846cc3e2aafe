package matter

import (
	"errors"
	"fmt"

	"matter-sensor-node/internal/substrate"
)

var (
	// ErrNull is returned when a nullable attribute currently holds null.
	ErrNull = errors.New("attribute value is null")
	// ErrUnexpectedType is returned when the substrate holds a value of a
	// different type than the attribute view expects.
	ErrUnexpectedType = errors.New("unexpected attribute value type")
)

// Attribute is an untyped attribute view, identified by its cluster handle
// and attribute id. The value is read at access time.
type Attribute struct {
	sub     substrate.Substrate
	cluster substrate.ClusterHandle
	id      uint32
}

// AttributeView is implemented by Attribute and every typed attribute.
type AttributeView interface {
	Untyped() Attribute
}

// ConcreteAttribute is the closed set of typed attributes declared in this
// package.
type ConcreteAttribute[A any] interface {
	AttributeView
	fromAttribute(Attribute) A
}

func (a Attribute) Untyped() Attribute { return a }
func (a Attribute) ID() uint32         { return a.id }

// Value reads the current raw value.
func (a Attribute) Value() (substrate.AttrVal, error) {
	if a.sub == nil {
		return substrate.AttrVal{}, fmt.Errorf("attribute 0x%04X: %w", a.id, substrate.ErrNotFound)
	}
	h := a.sub.Attribute(a.cluster, a.id)
	if h.IsNil() {
		return substrate.AttrVal{}, fmt.Errorf("attribute 0x%04X: %w", a.id, substrate.ErrNotFound)
	}
	return a.sub.AttributeValue(h)
}

// ReadAttribute returns the typed view of attribute id of cluster c.
func ReadAttribute[C ClusterView, A ConcreteAttribute[A]](c C, id AttributeID[C, A]) A {
	var zero A
	return zero.fromAttribute(c.Untyped().Attribute(id.raw))
}

func readAs[T any](a Attribute) (T, error) {
	var zero T
	val, err := a.Value()
	if err != nil {
		return zero, err
	}
	v, err := val.Value()
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, ErrNull
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("attribute 0x%04X holds %s: %w", a.id, val.Type, ErrUnexpectedType)
	}
	return t, nil
}

// IdentifyTime is the remaining identify time in seconds.
type IdentifyTime struct{ Attribute }

func (IdentifyTime) fromAttribute(a Attribute) IdentifyTime { return IdentifyTime{a} }
func (a IdentifyTime) Seconds() (uint16, error)             { return readAs[uint16](a.Attribute) }

// OnOffState is the On/Off attribute of the OnOff cluster.
type OnOffState struct{ Attribute }

func (OnOffState) fromAttribute(a Attribute) OnOffState { return OnOffState{a} }
func (a OnOffState) On() (bool, error)                  { return readAs[bool](a.Attribute) }

// CurrentLevel ranges 1..254.
type CurrentLevel struct{ Attribute }

func (CurrentLevel) fromAttribute(a Attribute) CurrentLevel { return CurrentLevel{a} }
func (a CurrentLevel) Level() (uint8, error)                { return readAs[uint8](a.Attribute) }

// Percent maps the level onto 0..100.
func (a CurrentLevel) Percent() (int, error) {
	l, err := a.Level()
	if err != nil {
		return 0, err
	}
	return int(l) * 100 / 254, nil
}

// CurrentHue ranges 0..254 over the hue circle.
type CurrentHue struct{ Attribute }

func (CurrentHue) fromAttribute(a Attribute) CurrentHue { return CurrentHue{a} }
func (a CurrentHue) Hue() (uint8, error)                { return readAs[uint8](a.Attribute) }

// Degrees maps the hue onto 0..360.
func (a CurrentHue) Degrees() (int, error) {
	h, err := a.Hue()
	if err != nil {
		return 0, err
	}
	return int(h) * 360 / 254, nil
}

// CurrentSaturation ranges 0..254.
type CurrentSaturation struct{ Attribute }

func (CurrentSaturation) fromAttribute(a Attribute) CurrentSaturation {
	return CurrentSaturation{a}
}
func (a CurrentSaturation) Saturation() (uint8, error) { return readAs[uint8](a.Attribute) }

// Percent maps the saturation onto 0..100.
func (a CurrentSaturation) Percent() (int, error) {
	s, err := a.Saturation()
	if err != nil {
		return 0, err
	}
	return int(s) * 100 / 254, nil
}

// ColorTemperatureMireds is the color temperature in reciprocal megakelvin.
type ColorTemperatureMireds struct{ Attribute }

func (ColorTemperatureMireds) fromAttribute(a Attribute) ColorTemperatureMireds {
	return ColorTemperatureMireds{a}
}
func (a ColorTemperatureMireds) Mireds() (uint16, error) { return readAs[uint16](a.Attribute) }

// Kelvin converts mireds to kelvin. Zero mireds is reported as ErrNull.
func (a ColorTemperatureMireds) Kelvin() (int, error) {
	m, err := a.Mireds()
	if err != nil {
		return 0, err
	}
	if m == 0 {
		return 0, ErrNull
	}
	return 1000000 / int(m), nil
}

// ColorMode selects which color attributes drive the light.
type ColorMode uint8

const (
	ColorModeHueSaturation    ColorMode = 0
	ColorModeXY               ColorMode = 1
	ColorModeColorTemperature ColorMode = 2
)

func (m ColorMode) String() string {
	switch m {
	case ColorModeHueSaturation:
		return "hue_saturation"
	case ColorModeXY:
		return "xy"
	case ColorModeColorTemperature:
		return "color_temperature"
	}
	return fmt.Sprintf("color_mode(%d)", uint8(m))
}

// ColorModeAttr is the ColorMode attribute of the ColorControl cluster.
type ColorModeAttr struct{ Attribute }

func (ColorModeAttr) fromAttribute(a Attribute) ColorModeAttr { return ColorModeAttr{a} }

func (a ColorModeAttr) Mode() (ColorMode, error) {
	m, err := readAs[uint8](a.Attribute)
	return ColorMode(m), err
}

// TemperatureMeasuredValue is in hundredths of a degree Celsius.
type TemperatureMeasuredValue struct{ Attribute }

func (TemperatureMeasuredValue) fromAttribute(a Attribute) TemperatureMeasuredValue {
	return TemperatureMeasuredValue{a}
}
func (a TemperatureMeasuredValue) Raw() (int16, error) { return readAs[int16](a.Attribute) }

func (a TemperatureMeasuredValue) Celsius() (float32, error) {
	v, err := a.Raw()
	return float32(v) / 100, err
}

// HumidityMeasuredValue is in hundredths of a percent.
type HumidityMeasuredValue struct{ Attribute }

func (HumidityMeasuredValue) fromAttribute(a Attribute) HumidityMeasuredValue {
	return HumidityMeasuredValue{a}
}
func (a HumidityMeasuredValue) Raw() (uint16, error) { return readAs[uint16](a.Attribute) }

func (a HumidityMeasuredValue) Percent() (float32, error) {
	v, err := a.Raw()
	return float32(v) / 100, err
}

// PressureMeasuredValue is in tenths of a kilopascal.
type PressureMeasuredValue struct{ Attribute }

func (PressureMeasuredValue) fromAttribute(a Attribute) PressureMeasuredValue {
	return PressureMeasuredValue{a}
}
func (a PressureMeasuredValue) Raw() (int16, error) { return readAs[int16](a.Attribute) }

func (a PressureMeasuredValue) Pascals() (float32, error) {
	v, err := a.Raw()
	return float32(v) * 100, err
}
