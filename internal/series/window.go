// ABOUTME: Sliding plot window around the current time
// ABOUTME: Nine tenths of the span lie in the past, one tenth in the future
package series

import (
	"time"
)

const (
	MinDelta     = 100 * time.Millisecond
	MaxDelta     = 10 * time.Second
	DefaultDelta = 5 * time.Second
)

// Window is the visible timespan
type Window struct {
	Delta time.Duration
}

// NewWindow clamps delta to [MinDelta, MaxDelta]
func NewWindow(delta time.Duration) Window {
	return Window{Delta: min(max(delta, MinDelta), MaxDelta)}
}

// Past is the part of the window before now
func (w Window) Past() time.Duration {
	return w.Delta * 9 / 10
}

// Future is the part of the window after now
func (w Window) Future() time.Duration {
	return w.Delta - w.Past()
}

// Bounds returns the visible interval for now
func (w Window) Bounds(now time.Time) (from, to time.Time) {
	return now.Add(-w.Past()), now.Add(w.Future())
}

// Scale multiplies the span by factor and clamps the result
func (w Window) Scale(factor float64) Window {
	return NewWindow(time.Duration(float64(w.Delta) * factor))
}
