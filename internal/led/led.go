// Package led models the on-board RGB LED. Setting a property propagates it
// to the driver immediately.
package led

import (
	"fmt"
	"log/slog"
	"sync"
)

// ColorKind tells which representation a Color carries.
type ColorKind uint8

const (
	HueSaturation ColorKind = iota
	Temperature
)

// Color is either hue (0..359) + saturation (0..100), or a color
// temperature in kelvin.
type Color struct {
	Kind       ColorKind `json:"kind"`
	Hue        int       `json:"hue,omitempty"`
	Saturation int       `json:"saturation,omitempty"`
	Kelvin     int       `json:"kelvin,omitempty"`
}

// HS returns a hue/saturation color.
func HS(hue, saturation int) Color {
	return Color{Kind: HueSaturation, Hue: hue, Saturation: saturation}
}

// Kelvin returns a color-temperature color.
func Kelvin(k int) Color {
	return Color{Kind: Temperature, Kelvin: k}
}

func (c Color) String() string {
	if c.Kind == Temperature {
		return fmt.Sprintf("%dK", c.Kelvin)
	}
	return fmt.Sprintf("hs(%d,%d)", c.Hue, c.Saturation)
}

// Driver pushes LED state to hardware.
type Driver interface {
	SetPower(on bool) error
	SetBrightness(percent uint8) error
	SetHue(hue uint16) error
	SetSaturation(percent uint8) error
	SetTemperature(kelvin uint32) error
}

// State is a snapshot of the LED.
type State struct {
	Enabled    bool  `json:"enabled"`
	Brightness int   `json:"brightness"`
	Color      Color `json:"color"`
}

// LED is safe for concurrent use.
type LED struct {
	mu         sync.Mutex
	driver     Driver
	logger     *slog.Logger
	enabled    bool
	brightness int
	color      Color
}

// New returns an LED in its power-on state: enabled, full brightness, red.
func New(driver Driver, logger *slog.Logger) *LED {
	return &LED{
		driver:     driver,
		logger:     logger.With("component", "led"),
		enabled:    true,
		brightness: 100,
		color:      HS(0, 100),
	}
}

// SetEnabled switches the LED on or off.
func (l *LED) SetEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = on
	l.logger.Info("LED enabled", "enabled", on)
	l.check("power", l.driver.SetPower(on))
}

// SetBrightness sets brightness in percent, clamped to 0..100.
func (l *LED) SetBrightness(percent int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.brightness = max(0, min(100, percent))
	l.check("brightness", l.driver.SetBrightness(uint8(l.brightness)))
}

// SetColor sets the LED color.
func (l *LED) SetColor(c Color) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch c.Kind {
	case HueSaturation:
		c.Hue = ((c.Hue % 360) + 360) % 360
		c.Saturation = max(0, min(100, c.Saturation))
		l.color = c
		l.check("hue", l.driver.SetHue(uint16(c.Hue)))
		l.check("saturation", l.driver.SetSaturation(uint8(c.Saturation)))
	case Temperature:
		c.Kelvin = max(600, min(10000, c.Kelvin))
		l.color = c
		l.check("temperature", l.driver.SetTemperature(uint32(c.Kelvin)))
	default:
		l.logger.Warn("unknown color kind", "kind", c.Kind)
	}
}

// State returns the current LED state.
func (l *LED) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{Enabled: l.enabled, Brightness: l.brightness, Color: l.color}
}

func (l *LED) check(what string, err error) {
	if err != nil {
		l.logger.Error("led driver failed", "op", what, "err", err)
	}
}

// LogDriver is a Driver that only logs.
type LogDriver struct {
	logger *slog.Logger
}

// NewLogDriver returns a driver that logs every call at debug level.
func NewLogDriver(logger *slog.Logger) *LogDriver {
	return &LogDriver{logger: logger.With("component", "led-driver")}
}

func (d *LogDriver) SetPower(on bool) error {
	d.logger.Debug("set power", "on", on)
	return nil
}

func (d *LogDriver) SetBrightness(percent uint8) error {
	d.logger.Debug("set brightness", "percent", percent)
	return nil
}

func (d *LogDriver) SetHue(hue uint16) error {
	d.logger.Debug("set hue", "hue", hue)
	return nil
}

func (d *LogDriver) SetSaturation(percent uint8) error {
	d.logger.Debug("set saturation", "percent", percent)
	return nil
}

func (d *LogDriver) SetTemperature(kelvin uint32) error {
	d.logger.Debug("set temperature", "kelvin", kelvin)
	return nil
}
