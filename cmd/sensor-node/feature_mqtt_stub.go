//go:build no_mqtt

package main

import (
	"log/slog"

	"matter-sensor-node/internal/events"
	"matter-sensor-node/internal/matter"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *events.Bus, _ *matter.ExtendedColorLight, _, _ string, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
