// ABOUTME: Fixed 16-byte frame header for both wire generations
// ABOUTME: HeaderA and HeaderB form a sealed tagged union behind Header
package webmsg

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/VILLASframework/villas-live-go/pkg/endian"
)

const (
	HeaderLen      = 16
	ValueLen       = 4
	MaxSampleCount = math.MaxUint16
)

// Bit offsets inside the first header byte
const (
	offsetEndian  = 1
	offsetKind    = 2
	offsetVersion = 4
)

// FrameLen returns the encoded size of a frame carrying count values
func FrameLen(count int) int {
	return HeaderLen + ValueLen*count
}

// Fields are the header fields shared by both generations
type Fields struct {
	Kind        Kind
	Version     uint8
	Count       uint16
	Sequence    uint32
	Seconds     uint32
	Nanoseconds uint32
}

// FrameLen returns the total frame size declared by the header
func (f Fields) FrameLen() int {
	return FrameLen(int(f.Count))
}

// Header is either a HeaderA or a HeaderB
type Header interface {
	Layout() Layout
	Common() Fields
	flags() (byte, byte, error)
}

// HeaderA is the generation with a payload byte-order flag
type HeaderA struct {
	Fields
	ByteOrder endian.ByteOrder
}

func (HeaderA) Layout() Layout   { return LayoutA }
func (h HeaderA) Common() Fields { return h.Fields }

func (h HeaderA) flags() (byte, byte, error) {
	if !h.ByteOrder.Valid() {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnsupportedByteOrder, h.ByteOrder)
	}
	b0, err := packFlags(h.Fields)
	if err != nil {
		return 0, 0, err
	}
	return b0 | byte(h.ByteOrder)<<offsetEndian, 0, nil
}

// HeaderB is the little-endian-only generation carrying a source id
type HeaderB struct {
	Fields
	SourceID uint8
}

func (HeaderB) Layout() Layout   { return LayoutB }
func (h HeaderB) Common() Fields { return h.Fields }

func (h HeaderB) flags() (byte, byte, error) {
	if h.Kind != KindData {
		return 0, 0, fmt.Errorf("%w: %s not defined for layout b", ErrInvalidKind, h.Kind)
	}
	b0, err := packFlags(h.Fields)
	if err != nil {
		return 0, 0, err
	}
	return b0, h.SourceID, nil
}

func packFlags(f Fields) (byte, error) {
	if f.Version != Version1 {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Version)
	}
	if f.Kind > KindEmpty {
		return 0, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(f.Kind))
	}
	return byte(f.Kind)<<offsetKind | f.Version<<offsetVersion, nil
}

// EncodeHeader returns the 16-byte wire form of h
func EncodeHeader(h Header) ([]byte, error) {
	return AppendHeader(make([]byte, 0, HeaderLen), h)
}

// AppendHeader appends the 16-byte wire form of h to dst
func AppendHeader(dst []byte, h Header) ([]byte, error) {
	if h == nil {
		return dst, ErrUnsupportedLayout
	}
	b0, b1, err := h.flags()
	if err != nil {
		return dst, err
	}
	f := h.Common()
	dst = append(dst, b0, b1)
	dst = binary.LittleEndian.AppendUint16(dst, f.Count)
	dst = binary.LittleEndian.AppendUint32(dst, f.Sequence)
	dst = binary.LittleEndian.AppendUint32(dst, f.Seconds)
	dst = binary.LittleEndian.AppendUint32(dst, f.Nanoseconds)
	return dst, nil
}

// DetectLayout guesses the header generation from the first two bytes.
// A set byte-order flag means LayoutA, a non-zero byte 1 means LayoutB.
// When both are zero the generations are byte-identical and LayoutA is
// reported.
func DetectLayout(b []byte) (Layout, error) {
	if len(b) < 2 {
		return LayoutAuto, fmt.Errorf("%w: need 2 bytes to detect layout, have %d", ErrTruncatedFrame, len(b))
	}
	if (b[0]>>offsetEndian)&0x1 != 0 {
		return LayoutA, nil
	}
	if b[1] != 0 {
		return LayoutB, nil
	}
	return LayoutA, nil
}

// DecodeHeader parses the first 16 bytes of b. It never looks at the
// payload. LayoutAuto runs DetectLayout first.
func DecodeHeader(b []byte, layout Layout) (Header, error) {
	if len(b) < HeaderLen {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncatedFrame, HeaderLen, len(b))
	}

	bits := b[0]
	version := (bits >> offsetVersion) & 0xf
	if version != Version1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	if layout == LayoutAuto {
		var err error
		if layout, err = DetectLayout(b); err != nil {
			return nil, err
		}
	}

	f := Fields{
		Kind:        Kind((bits >> offsetKind) & 0x3),
		Version:     version,
		Count:       binary.LittleEndian.Uint16(b[2:4]),
		Sequence:    binary.LittleEndian.Uint32(b[4:8]),
		Seconds:     binary.LittleEndian.Uint32(b[8:12]),
		Nanoseconds: binary.LittleEndian.Uint32(b[12:16]),
	}
	flag := endian.ByteOrder((bits >> offsetEndian) & 0x1)

	switch layout {
	case LayoutA:
		return HeaderA{Fields: f, ByteOrder: flag}, nil
	case LayoutB:
		if flag != endian.Little {
			return nil, fmt.Errorf("%w: layout b payloads are little-endian only", ErrUnsupportedByteOrder)
		}
		if f.Kind != KindData {
			return nil, fmt.Errorf("%w: %s not defined for layout b", ErrInvalidKind, f.Kind)
		}
		return HeaderB{Fields: f, SourceID: b[1]}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLayout, layout)
	}
}
