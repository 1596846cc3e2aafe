// Package poller periodically samples the environment sensor and publishes
// the readings to the sensor endpoints.
package poller

import (
	"context"
	"log/slog"
	"time"

	"matter-sensor-node/internal/events"
	"matter-sensor-node/internal/matter"
	"matter-sensor-node/internal/sensor"
)

const defaultRetryDelay = 200 * time.Millisecond

// Config controls polling.
type Config struct {
	Interval   time.Duration
	Retries    int
	RetryDelay time.Duration
}

// Endpoints are the three measurement endpoints fed by the poller.
type Endpoints struct {
	Temperature *matter.ExtendedTemperature
	Humidity    *matter.ExtendedHumidity
	Pressure    *matter.ExtendedPressure
}

// Poller reads the sensor on a fixed interval.
type Poller struct {
	sensor sensor.Sensor
	eps    Endpoints
	cfg    Config
	bus    *events.Bus
	logger *slog.Logger
}

// New creates a poller. bus may be nil.
func New(s sensor.Sensor, eps Endpoints, cfg Config, bus *events.Bus, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Poller{
		sensor: s,
		eps:    eps,
		cfg:    cfg,
		bus:    bus,
		logger: logger.With("component", "poller"),
	}
}

// Run polls until ctx is cancelled. The first poll happens after one interval.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("sensor polling started", "interval", p.cfg.Interval, "retries", p.cfg.Retries)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("sensor polling stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one read and update cycle. It reports whether all three
// endpoints were updated.
func (p *Poller) Poll(ctx context.Context) bool {
	r, err := sensor.ReadWithRetry(ctx, p.sensor, p.cfg.Retries, p.cfg.RetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("Error reading sensor data", "err", err)
		if p.bus != nil {
			p.bus.Emit(events.Event{
				Type: events.TypeSensorError,
				Data: events.SensorErrorData{Error: err.Error(), Attempts: p.cfg.Retries},
			})
		}
		return false
	}

	ok := true
	if p.eps.Temperature != nil {
		ok = p.eps.Temperature.UpdateTemperature(r.Temperature) && ok
	}
	if p.eps.Humidity != nil {
		ok = p.eps.Humidity.UpdateHumidity(r.Humidity) && ok
	}
	if p.eps.Pressure != nil {
		ok = p.eps.Pressure.UpdatePressure(r.Pressure) && ok
	}
	return ok
}
