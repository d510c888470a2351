// ABOUTME: In-memory representation of one decoded frame
// ABOUTME: Defines Sample, Kind and Layout
package webmsg

import (
	"fmt"
	"strings"
	"time"

	"github.com/VILLASframework/villas-live-go/pkg/endian"
)

// Version1 is the only implemented format version
const Version1 uint8 = 1

// Kind tags the purpose of a frame
type Kind uint8

const (
	KindData  Kind = 0 // carries sample values
	KindStart Kind = 1 // beginning of a run
	KindStop  Kind = 2 // end of a run
	KindEmpty Kind = 3 // no payload, reserved/heartbeat
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindStart:
		return "start"
	case KindStop:
		return "stop"
	case KindEmpty:
		return "empty"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Layout selects the header generation
type Layout uint8

const (
	// LayoutAuto detects the generation from the header when decoding and
	// encodes as LayoutA.
	LayoutAuto Layout = iota
	// LayoutA carries a payload byte-order flag in bit 1 of the first byte.
	LayoutA
	// LayoutB is little-endian only and carries a source id in byte 1.
	LayoutB
)

func (l Layout) String() string {
	switch l {
	case LayoutAuto:
		return "auto"
	case LayoutA:
		return "a"
	case LayoutB:
		return "b"
	default:
		return fmt.Sprintf("Layout(%d)", uint8(l))
	}
}

// ParseLayout parses "auto", "a" or "b" (case-insensitive)
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return LayoutAuto, nil
	case "a":
		return LayoutA, nil
	case "b":
		return LayoutB, nil
	default:
		return LayoutAuto, fmt.Errorf("%w: %q", ErrUnsupportedLayout, s)
	}
}

// Sample is one frame in structured form. Decoding always produces a
// fresh Sample whose Values do not alias the input buffer.
type Sample struct {
	// Layout is inferred when decoding with LayoutAuto. A LayoutB frame
	// with SourceID 0 is byte-identical to LayoutA and decodes as LayoutA.
	Layout    Layout
	Kind      Kind
	Version   uint8
	ByteOrder endian.ByteOrder // payload order, LayoutA only
	SourceID  uint8            // LayoutB only
	Sequence  uint32
	Timestamp time.Time
	Values    []float32
}

// NewSample returns a LayoutA, little-endian DATA sample
func NewSample(sequence uint32, ts time.Time, values ...float32) Sample {
	return Sample{
		Layout:    LayoutA,
		Kind:      KindData,
		Version:   Version1,
		ByteOrder: endian.Little,
		Sequence:  sequence,
		Timestamp: ts,
		Values:    values,
	}
}

// HasSourceID reports whether SourceID was carried on the wire
func (s Sample) HasSourceID() bool {
	return s.Layout == LayoutB
}

// Millis returns the timestamp as milliseconds since the Unix epoch
func (s Sample) Millis() float64 {
	if s.Timestamp.IsZero() {
		return 0
	}
	return float64(s.Timestamp.Unix())*1e3 + float64(s.Timestamp.Nanosecond())*1e-6
}

// FrameLen returns the encoded size of s in bytes
func (s Sample) FrameLen() int {
	return FrameLen(len(s.Values))
}

func (s Sample) String() string {
	var b strings.Builder
	sec, nsec := int64(0), 0
	if !s.Timestamp.IsZero() {
		sec, nsec = s.Timestamp.Unix(), s.Timestamp.Nanosecond()
	}
	fmt.Fprintf(&b, "%d.%09d(%d)", sec, nsec, s.Sequence)
	if s.Kind != KindData {
		fmt.Fprintf(&b, " [%s]", s.Kind)
	}
	for _, v := range s.Values {
		fmt.Fprintf(&b, " %g", v)
	}
	return b.String()
}
