// ABOUTME: Operator inputs sent back to the node
// ABOUTME: A slider and eight checkboxes packed into one data sample
package control

import (
	"sync"
	"time"

	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

const (
	SliderMax  = 10000
	Checkboxes = 8
)

// Input is the current state of the controls
type Input struct {
	Slider     int
	Checkboxes [Checkboxes]bool
}

// Nudge moves the slider by delta, clamped to [0, SliderMax]
func (in *Input) Nudge(delta int) {
	in.Slider = min(max(in.Slider+delta, 0), SliderMax)
}

// Toggle flips checkbox i; out of range indexes are ignored
func (in *Input) Toggle(i int) {
	if i >= 0 && i < Checkboxes {
		in.Checkboxes[i] = !in.Checkboxes[i]
	}
}

// Bitmask has bit i set when checkbox i is checked
func (in Input) Bitmask() uint8 {
	var mask uint8
	for i, on := range in.Checkboxes {
		if on {
			mask |= 1 << i
		}
	}
	return mask
}

// Values is the payload: slider in percent, then the checkbox mask
func (in Input) Values() []float32 {
	return []float32{float32(in.Slider) / 100, float32(in.Bitmask())}
}

// Builder numbers outgoing samples
type Builder struct {
	mu       sync.Mutex
	sequence uint32
	layout   webmsg.Layout
	sourceID uint8
}

// NewBuilder creates a builder for the given wire layout
func NewBuilder(layout webmsg.Layout, sourceID uint8) *Builder {
	if layout == webmsg.LayoutAuto {
		layout = webmsg.LayoutA
	}
	return &Builder{layout: layout, sourceID: sourceID}
}

// Next returns the sample for in and advances the sequence
func (b *Builder) Next(in Input, now time.Time) webmsg.Sample {
	b.mu.Lock()
	seq := b.sequence
	b.sequence++
	b.mu.Unlock()

	s := webmsg.NewSample(seq, now, in.Values()...)
	s.Layout = b.layout
	if b.layout == webmsg.LayoutB {
		s.SourceID = b.sourceID
	}
	return s
}
