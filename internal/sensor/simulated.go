package sensor

import (
	"context"
	"math"
	"sync"
)

// Simulated produces a deterministic, slowly varying reading around
// indoor conditions.
type Simulated struct {
	mu   sync.Mutex
	tick int
}

// NewSimulated returns a simulated sensor.
func NewSimulated() *Simulated {
	return &Simulated{}
}

func (s *Simulated) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	s.mu.Lock()
	n := float64(s.tick)
	s.tick++
	s.mu.Unlock()
	return Reading{
		Temperature: float32(22 + 3*math.Sin(n/30)),
		Humidity:    float32(45 + 10*math.Sin(n/45)),
		Pressure:    float32(101325 + 200*math.Sin(n/60)),
	}, nil
}
