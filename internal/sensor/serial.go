package sensor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	defaultReadTimeout = 2 * time.Second
	pollInterval       = 100 * time.Millisecond
	maxLineLen         = 256
)

// requestCmd asks the UART bridge for one sample.
var requestCmd = []byte("R\n")

type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// SerialBME280 reads a BME280 behind a UART bridge that answers each
// request with one `T=..,H=..,P=..` line.
type SerialBME280 struct {
	mu      sync.Mutex
	port    port
	pending []byte
	timeout time.Duration
	logger  *slog.Logger
}

// NewSerialBME280 opens portName at baud and returns the sensor.
func NewSerialBME280(portName string, baud int, logger *slog.Logger) (*SerialBME280, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("bme280: open %s: %w", portName, err)
	}
	return newSerialBME280(p, logger), nil
}

func newSerialBME280(p port, logger *slog.Logger) *SerialBME280 {
	return &SerialBME280{
		port:    p,
		timeout: defaultReadTimeout,
		logger:  logger.With("component", "bme280"),
	}
}

// Read requests one sample and parses the reply.
func (s *SerialBME280) Read(ctx context.Context) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.port.SetReadTimeout(pollInterval); err != nil {
		return Reading{}, fmt.Errorf("bme280: set timeout: %w", err)
	}
	s.pending = s.pending[:0]
	if _, err := s.port.Write(requestCmd); err != nil {
		return Reading{}, fmt.Errorf("bme280: request: %w", err)
	}

	line, err := s.readLine(ctx, deadline)
	if err != nil {
		return Reading{}, err
	}
	r, err := ParseLine(line)
	if err != nil {
		s.logger.Debug("discarding line", "line", line, "err", err)
		return Reading{}, err
	}
	return r, nil
}

func (s *SerialBME280) readLine(ctx context.Context, deadline time.Time) (string, error) {
	buf := make([]byte, 64)
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := string(bytes.TrimRight(s.pending[:i], "\r"))
			s.pending = append(s.pending[:0], s.pending[i+1:]...)
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}
		n, err := s.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("bme280: read: %w", err)
		}
		s.pending = append(s.pending, buf[:n]...)
		if len(s.pending) > maxLineLen {
			s.pending = s.pending[:0]
			return "", fmt.Errorf("%w: line too long", ErrMalformed)
		}
	}
}

// Close releases the serial port.
func (s *SerialBME280) Close() error {
	return s.port.Close()
}
