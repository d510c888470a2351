// ABOUTME: Tests for operator inputs
// ABOUTME: Verifies clamping, the bitmask and sequence numbering
package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

func TestNudgeClamps(t *testing.T) {
	var in Input
	in.Nudge(-5)
	assert.Equal(t, 0, in.Slider)
	in.Nudge(2500)
	assert.Equal(t, 2500, in.Slider)
	in.Nudge(SliderMax)
	assert.Equal(t, SliderMax, in.Slider)
}

func TestBitmask(t *testing.T) {
	var in Input
	in.Toggle(0)
	in.Toggle(3)
	in.Toggle(7)
	in.Toggle(8)
	in.Toggle(-1)
	assert.Equal(t, uint8(0b1000_1001), in.Bitmask())

	in.Toggle(3)
	assert.Equal(t, uint8(0b1000_0001), in.Bitmask())
}

func TestValues(t *testing.T) {
	in := Input{Slider: 4250}
	in.Toggle(1)
	assert.Equal(t, []float32{42.5, 2}, in.Values())
}

func TestBuilderSequence(t *testing.T) {
	b := NewBuilder(webmsg.LayoutAuto, 0)
	now := time.Unix(1700000000, 0)

	first := b.Next(Input{Slider: 100}, now)
	second := b.Next(Input{}, now)

	assert.Equal(t, uint32(0), first.Sequence)
	assert.Equal(t, uint32(1), second.Sequence)
	assert.Equal(t, webmsg.LayoutA, first.Layout)
	assert.Equal(t, webmsg.KindData, first.Kind)
	assert.Equal(t, now, first.Timestamp)

	buf, err := webmsg.Encode(first)
	require.NoError(t, err)
	assert.Len(t, buf, webmsg.FrameLen(2))
}

func TestBuilderLayoutB(t *testing.T) {
	b := NewBuilder(webmsg.LayoutB, 9)
	s := b.Next(Input{}, time.Unix(1, 0))

	buf, err := webmsg.Encode(s)
	require.NoError(t, err)

	got, err := webmsg.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, webmsg.LayoutB, got.Layout)
	assert.Equal(t, uint8(9), got.SourceID)
}
