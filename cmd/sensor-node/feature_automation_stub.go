//go:build no_automation

package main

import (
	"log/slog"

	"matter-sensor-node/internal/events"
	"matter-sensor-node/internal/matter"
	"matter-sensor-node/internal/web"
)

type autoStopper struct{}

func (a *autoStopper) Stop() {}

func initAutomation(_ *matter.Node, _ *events.Bus, _ *Config, _ *slog.Logger) (*autoStopper, []web.ServerOption) {
	return &autoStopper{}, nil
}
