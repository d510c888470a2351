// ABOUTME: Splits a buffer of concatenated frames into samples
// ABOUTME: Uses each header's sample count to find the next frame boundary
package webmsg

import (
	"fmt"
	"iter"
)

// DecodeAll decodes every frame in b, detecting each frame's layout.
// On failure it returns the samples decoded before the failing frame
// together with a *FrameError.
func DecodeAll(b []byte) ([]Sample, error) {
	return DecodeAllLayout(b, LayoutAuto)
}

// DecodeAllLayout is DecodeAll with a fixed layout
func DecodeAllLayout(b []byte, layout Layout) ([]Sample, error) {
	var samples []Sample
	for s, err := range Frames(b, layout) {
		if err != nil {
			return samples, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// Frames iterates over the frames in b in order. Iteration stops after
// yielding the first error; the sequence cannot be restarted.
func Frames(b []byte, layout Layout) iter.Seq2[Sample, error] {
	return func(yield func(Sample, error) bool) {
		for cursor, index := 0, 0; cursor < len(b); index++ {
			rest := b[cursor:]

			h, n, err := frameHeader(rest, layout)
			if err != nil {
				yield(Sample{}, &FrameError{Offset: cursor, Index: index, Err: err})
				return
			}

			s, err := decodeBody(rest[:n], h)
			if err != nil {
				yield(Sample{}, &FrameError{Offset: cursor, Index: index, Err: err})
				return
			}
			if !yield(s, nil) {
				return
			}
			cursor += n
		}
	}
}

// FrameCount walks the headers in b without decoding payloads
func FrameCount(b []byte) (int, error) {
	count := 0
	for cursor := 0; cursor < len(b); count++ {
		_, n, err := frameHeader(b[cursor:], LayoutAuto)
		if err != nil {
			return count, &FrameError{Offset: cursor, Index: count, Err: err}
		}
		cursor += n
	}
	return count, nil
}

// frameHeader decodes the header at the start of rest and checks that the
// whole frame fits
func frameHeader(rest []byte, layout Layout) (Header, int, error) {
	h, err := DecodeHeader(rest, layout)
	if err != nil {
		return nil, 0, err
	}
	n := h.Common().FrameLen()
	if n > len(rest) {
		return nil, 0, fmt.Errorf("%w: frame needs %d bytes, %d remain", ErrTruncatedFrame, n, len(rest))
	}
	return h, n, nil
}
