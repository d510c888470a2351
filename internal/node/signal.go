// ABOUTME: Test signal generators for the mock node
// ABOUTME: Produces timestamped sample vectors from periodic shapes
package node

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Signal types understood by the generator
const (
	SignalSine     = "sine"
	SignalSquare   = "square"
	SignalRamp     = "ramp"
	SignalTriangle = "triangle"
	SignalCounter  = "counter"
	SignalConstant = "constant"
)

// SignalConfig describes one generated channel. Every shape yields
// Offset + Amplitude*shape(t).
type SignalConfig struct {
	Name      string
	Type      string
	Unit      string
	Frequency float64
	Amplitude float64
	Offset    float64
}

// shape maps elapsed seconds and sample index to a unit value
type shape func(t float64, index uint64) float64

func shapeOf(kind string) (shape, error) {
	switch kind {
	case SignalSine:
		return func(t float64, _ uint64) float64 { return math.Sin(2 * math.Pi * t) }, nil
	case SignalSquare:
		return func(t float64, _ uint64) float64 {
			if frac(t) < 0.5 {
				return 1
			}
			return -1
		}, nil
	case SignalRamp:
		return func(t float64, _ uint64) float64 { return frac(t) }, nil
	case SignalTriangle:
		return func(t float64, _ uint64) float64 { return 1 - 4*math.Abs(frac(t+0.25)-0.5) }, nil
	case SignalCounter:
		return func(_ float64, index uint64) float64 { return float64(index) }, nil
	case SignalConstant:
		return func(float64, uint64) float64 { return 1 }, nil
	default:
		return nil, fmt.Errorf("unknown signal type %q", kind)
	}
}

func frac(x float64) float64 {
	return x - math.Floor(x)
}

// Source generates sample vectors for a set of signals
type Source struct {
	signals []SignalConfig
	shapes  []shape

	mu    sync.Mutex
	index uint64
	start time.Time
}

// NewSource validates the signal types
func NewSource(signals []SignalConfig, start time.Time) (*Source, error) {
	if len(signals) == 0 {
		return nil, fmt.Errorf("at least one signal is required")
	}

	shapes := make([]shape, len(signals))
	for i, sig := range signals {
		sh, err := shapeOf(sig.Type)
		if err != nil {
			return nil, fmt.Errorf("signal %q: %w", sig.Name, err)
		}
		shapes[i] = sh
	}

	return &Source{signals: signals, shapes: shapes, start: start}, nil
}

// Read returns the values of all signals at ts and advances the index
func (s *Source) Read(ts time.Time) []float32 {
	s.mu.Lock()
	index := s.index
	s.index++
	s.mu.Unlock()

	elapsed := ts.Sub(s.start).Seconds()
	values := make([]float32, len(s.signals))
	for i, sig := range s.signals {
		values[i] = float32(sig.Offset + sig.Amplitude*s.shapes[i](sig.Frequency*elapsed, index))
	}
	return values
}

// Signals returns the configured signals
func (s *Source) Signals() []SignalConfig {
	return s.signals
}
