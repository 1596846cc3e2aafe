// Package sensor provides BME280 environment readings.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformed = errors.New("sensor: malformed reading")
	ErrTimeout   = errors.New("sensor: read timeout")
)

// Reading is one sample of the three BME280 channels.
type Reading struct {
	Temperature float32 // °C
	Humidity    float32 // %RH
	Pressure    float32 // Pa
}

// Sensor is a source of readings.
type Sensor interface {
	Read(ctx context.Context) (Reading, error)
}

// ParseLine parses a `T=<c>,H=<pct>,P=<pa>` line. Field order is free;
// all three fields are required.
func ParseLine(line string) (Reading, error) {
	var r Reading
	var seen uint8
	line = strings.TrimSpace(line)
	if line == "" {
		return r, fmt.Errorf("%w: empty line", ErrMalformed)
	}
	for _, field := range strings.Split(line, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			return r, fmt.Errorf("%w: field %q", ErrMalformed, field)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 32)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return r, fmt.Errorf("%w: value %q", ErrMalformed, val)
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "T":
			r.Temperature = float32(f)
			seen |= 1
		case "H":
			r.Humidity = float32(f)
			seen |= 2
		case "P":
			r.Pressure = float32(f)
			seen |= 4
		default:
			return r, fmt.Errorf("%w: unknown key %q", ErrMalformed, key)
		}
	}
	if seen != 7 {
		return r, fmt.Errorf("%w: missing field in %q", ErrMalformed, line)
	}
	return r, nil
}

// ReadWithRetry reads s up to attempts times, waiting delay between
// attempts. It returns the last error when every attempt fails.
func ReadWithRetry(ctx context.Context, s Sensor, attempts int, delay time.Duration) (Reading, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Reading{}, ctx.Err()
			}
		}
		r, err := s.Read(ctx)
		if err == nil {
			return r, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Reading{}, ctx.Err()
		}
	}
	return Reading{}, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
