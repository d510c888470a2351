// ABOUTME: Single-frame encode and decode
// ABOUTME: Validates lengths before reading and normalizes payload byte order
package webmsg

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/VILLASframework/villas-live-go/pkg/endian"
)

// Encode returns exactly FrameLen(len(s.Values)) bytes
func Encode(s Sample) ([]byte, error) {
	if len(s.Values) > MaxSampleCount {
		return nil, fmt.Errorf("%w: %d values exceed %d", ErrInvalidSampleCount, len(s.Values), MaxSampleCount)
	}
	buf, err := AppendFrame(make([]byte, 0, s.FrameLen()), s)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// AppendFrame appends the encoded frame of s to dst. Several frames
// appended to one buffer form a vectorized message.
func AppendFrame(dst []byte, s Sample) ([]byte, error) {
	h, err := headerOf(s)
	if err != nil {
		return dst, err
	}

	out, err := AppendHeader(dst, h)
	if err != nil {
		return dst, err
	}

	order := s.ByteOrder.Binary()
	if s.Layout == LayoutB {
		order = binary.LittleEndian
	}

	n := ValueLen * len(s.Values)
	out = slices.Grow(out, n)
	payload := out[len(out) : len(out)+n]
	for i, v := range s.Values {
		order.PutUint32(payload[i*ValueLen:], math.Float32bits(v))
	}
	return out[:len(out)+n], nil
}

func headerOf(s Sample) (Header, error) {
	if len(s.Values) > MaxSampleCount {
		return nil, fmt.Errorf("%w: %d values exceed %d", ErrInvalidSampleCount, len(s.Values), MaxSampleCount)
	}
	sec, nsec, err := splitTimestamp(s.Timestamp)
	if err != nil {
		return nil, err
	}

	f := Fields{
		Kind:        s.Kind,
		Version:     s.Version,
		Count:       uint16(len(s.Values)),
		Sequence:    s.Sequence,
		Seconds:     sec,
		Nanoseconds: nsec,
	}

	switch s.Layout {
	case LayoutAuto, LayoutA:
		return HeaderA{Fields: f, ByteOrder: s.ByteOrder}, nil
	case LayoutB:
		if s.ByteOrder != endian.Little {
			return nil, fmt.Errorf("%w: layout b payloads are little-endian only", ErrUnsupportedByteOrder)
		}
		return HeaderB{Fields: f, SourceID: s.SourceID}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLayout, s.Layout)
	}
}

// splitTimestamp maps the zero time to (0, 0)
func splitTimestamp(ts time.Time) (uint32, uint32, error) {
	if ts.IsZero() {
		return 0, 0, nil
	}
	sec := ts.Unix()
	if sec < 0 || sec > math.MaxUint32 {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidTimestamp, ts.UTC().Format(time.RFC3339Nano))
	}
	return uint32(sec), uint32(ts.Nanosecond()), nil
}

// joinTimestamp maps (0, 0) back to the zero time
func joinTimestamp(sec, nsec uint32) time.Time {
	if sec == 0 && nsec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), int64(nsec)).UTC()
}

// Decode decodes the frame at the start of b, detecting its layout.
// Bytes after the frame are ignored.
func Decode(b []byte) (Sample, error) {
	return DecodeLayout(b, LayoutAuto)
}

// DecodeLayout decodes the frame at the start of b using layout
func DecodeLayout(b []byte, layout Layout) (Sample, error) {
	h, err := DecodeHeader(b, layout)
	if err != nil {
		return Sample{}, err
	}
	return decodeBody(b, h)
}

// decodeBody checks the declared length against b before touching the payload
func decodeBody(b []byte, h Header) (Sample, error) {
	f := h.Common()
	n := f.FrameLen()
	if len(b) < n {
		return Sample{}, fmt.Errorf("%w: frame needs %d bytes, have %d", ErrTruncatedFrame, n, len(b))
	}

	s := Sample{
		Layout:    h.Layout(),
		Kind:      f.Kind,
		Version:   f.Version,
		Sequence:  f.Sequence,
		Timestamp: joinTimestamp(f.Seconds, f.Nanoseconds),
	}

	order := endian.Little
	switch h := h.(type) {
	case HeaderA:
		s.ByteOrder = h.ByteOrder
		order = h.ByteOrder
	case HeaderB:
		s.SourceID = h.SourceID
	}

	s.Values = decodeValues(b[HeaderLen:n], int(f.Count), order)
	return s, nil
}

// decodeValues reads raw words in host order and swaps them when the wire
// order differs from the host
func decodeValues(payload []byte, count int, order endian.ByteOrder) []float32 {
	values := make([]float32, count)
	swap := order != endian.Host()
	for i := range values {
		w := binary.NativeEndian.Uint32(payload[i*ValueLen:])
		if swap {
			w = endian.Swap32(w)
		}
		values[i] = math.Float32frombits(w)
	}
	return values
}
