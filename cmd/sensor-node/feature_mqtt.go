//go:build !no_mqtt

package main

import (
	"log/slog"

	mqttbridge "matter-sensor-node/internal/mqtt"

	"matter-sensor-node/internal/events"
	"matter-sensor-node/internal/matter"
)

type mqttStopper struct {
	bridge *mqttbridge.Bridge
}

func (m *mqttStopper) Stop() {
	if m.bridge != nil {
		m.bridge.Stop()
	}
}

func initMQTT(bus *events.Bus, light *matter.ExtendedColorLight, name, uniqueID string, cfg *Config, logger *slog.Logger) *mqttStopper {
	if !cfg.MQTT.Enabled {
		return &mqttStopper{}
	}
	dev := mqttbridge.DeviceInfo{
		NodeID:       uniqueID,
		Name:         name,
		Manufacturer: cfg.Node.Vendor,
		Model:        "Sensor Node",
		Temperature:  true,
		Humidity:     true,
		Pressure:     true,
		Light:        light != nil,
	}
	var lc mqttbridge.LightController
	if light != nil {
		lc = light
	}
	bridge, err := mqttbridge.NewBridge(mqttbridge.Config{
		Broker:      cfg.MQTT.Broker,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}, dev, bus, lc, logger)
	if err != nil {
		logger.Error("mqtt bridge", "err", err)
		return &mqttStopper{}
	}
	bridge.Start()
	return &mqttStopper{bridge: bridge}
}
