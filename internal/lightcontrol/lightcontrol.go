// Package lightcontrol drives the LED from light endpoint attribute events.
package lightcontrol

import (
	"log/slog"

	"matter-sensor-node/internal/led"
	"matter-sensor-node/internal/matter"
)

// Controller maps OnOff, LevelControl and ColorControl changes to the LED.
type Controller struct {
	led    *led.LED
	logger *slog.Logger
}

// New creates a controller for l.
func New(l *led.LED, logger *slog.Logger) *Controller {
	return &Controller{led: l, logger: logger.With("component", "lightcontrol")}
}

// Attach installs the controller as the light's event handler and pushes
// the light's current state to the LED.
func (c *Controller) Attach(light *matter.ExtendedColorLight) {
	light.SetEventHandler(c.Handle)
	c.Apply(light.Light())
}

// Apply pushes the full state of a light endpoint to the LED.
func (c *Controller) Apply(light matter.ColorLight) {
	if on, err := light.OnOff().OnOff().On(); err == nil {
		c.led.SetEnabled(on)
	}
	if pct, err := light.LevelControl().CurrentLevel().Percent(); err == nil {
		c.led.SetBrightness(pct)
	}
	c.applyColor(light.ColorControl())
}

// Handle reacts to PostUpdate events; everything else is ignored.
func (c *Controller) Handle(ev matter.AttributeEvent) {
	if ev.Kind != matter.PostUpdate {
		return
	}

	if attr, ok := matter.EventAttribute(ev, matter.OnOffAttrID); ok {
		on, err := attr.On()
		if err != nil {
			c.logger.Warn("read on/off", "err", err)
			return
		}
		c.led.SetEnabled(on)
		return
	}

	if attr, ok := matter.EventAttribute(ev, matter.CurrentLevelID); ok {
		pct, err := attr.Percent()
		if err != nil {
			c.logger.Debug("level unset", "err", err)
			return
		}
		c.led.SetBrightness(pct)
		return
	}

	if cc, ok := matter.ClusterAs[matter.ColorControl](ev.Cluster); ok {
		c.applyColor(cc)
		return
	}

	c.logger.Debug("unhandled attribute", "cluster", ev.Cluster.ID(), "attr", ev.AttributeID)
}

func (c *Controller) applyColor(cc matter.ColorControl) {
	mode, err := cc.ColorMode().Mode()
	if err != nil {
		c.logger.Warn("read color mode", "err", err)
		return
	}
	switch mode {
	case matter.ColorModeHueSaturation:
		deg, err := cc.CurrentHue().Degrees()
		if err != nil {
			c.logger.Warn("read hue", "err", err)
			return
		}
		sat, err := cc.CurrentSaturation().Percent()
		if err != nil {
			c.logger.Warn("read saturation", "err", err)
			return
		}
		c.led.SetColor(led.HS(deg, sat))
	case matter.ColorModeColorTemperature:
		k, err := cc.ColorTemperatureMireds().Kelvin()
		if err != nil {
			c.logger.Warn("read color temperature", "err", err)
			return
		}
		c.led.SetColor(led.Kelvin(k))
	default:
		c.logger.Debug("color mode not supported", "mode", mode)
	}
}
