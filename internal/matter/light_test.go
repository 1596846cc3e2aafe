package matter

import "testing"

func TestLightSetters(t *testing.T) {
	node, _ := newTestNode(t)
	light, err := NewExtendedColorLight(node)
	if err != nil {
		t.Fatal(err)
	}
	view := light.Light()

	if on, err := view.OnOff().OnOff().On(); err != nil || on {
		t.Errorf("initial on = %v (%v), want false", on, err)
	}
	if err := light.SetOn(true); err != nil {
		t.Fatal(err)
	}
	if on, _ := view.OnOff().OnOff().On(); !on {
		t.Error("light not on after SetOn(true)")
	}

	if err := light.SetLevel(127); err != nil {
		t.Fatal(err)
	}
	if p, _ := view.LevelControl().CurrentLevel().Percent(); p != 50 {
		t.Errorf("level percent = %d, want 50", p)
	}
	if err := light.SetLevel(0); err == nil {
		t.Error("SetLevel(0) accepted")
	}

	if err := light.SetHueSaturation(127, 254); err != nil {
		t.Fatal(err)
	}
	cc := view.ColorControl()
	if mode, _ := cc.ColorMode().Mode(); mode != ColorModeHueSaturation {
		t.Errorf("mode = %s, want hue_saturation", mode)
	}
	if deg, _ := cc.CurrentHue().Degrees(); deg != 180 {
		t.Errorf("hue = %d°, want 180", deg)
	}
	if sat, _ := cc.CurrentSaturation().Percent(); sat != 100 {
		t.Errorf("saturation = %d%%, want 100", sat)
	}

	if err := light.SetColorTemperature(250); err != nil {
		t.Fatal(err)
	}
	if mode, _ := cc.ColorMode().Mode(); mode != ColorModeColorTemperature {
		t.Errorf("mode = %s, want color_temperature", mode)
	}
	if k, _ := cc.ColorTemperatureMireds().Kelvin(); k != 4000 {
		t.Errorf("kelvin = %d, want 4000", k)
	}
	if err := light.SetColorTemperature(0); err == nil {
		t.Error("SetColorTemperature(0) accepted")
	}
}
