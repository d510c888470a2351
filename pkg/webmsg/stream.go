// ABOUTME: Frame reader and writer for raw byte streams
// ABOUTME: Handles frames that straddle read boundaries
package webmsg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
)

// Reader reads whole frames from a byte stream
type Reader struct {
	r      *bufio.Reader
	layout Layout
	buf    []byte
}

// NewReader returns a Reader decoding frames with layout
func NewReader(r io.Reader, layout Layout) *Reader {
	return &Reader{
		r:      bufio.NewReader(r),
		layout: layout,
		buf:    make([]byte, HeaderLen, FrameLen(64)),
	}
}

// ReadSample reads exactly one frame. It returns io.EOF when the stream
// ends on a frame boundary and ErrTruncatedFrame when it ends inside one.
func (r *Reader) ReadSample() (Sample, error) {
	hdr := r.buf[:HeaderLen]
	if _, err := io.ReadFull(r.r, hdr); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Sample{}, fmt.Errorf("%w: stream ended inside header", ErrTruncatedFrame)
		}
		return Sample{}, err
	}

	h, err := DecodeHeader(hdr, r.layout)
	if err != nil {
		return Sample{}, err
	}

	n := h.Common().FrameLen()
	r.buf = slices.Grow(r.buf[:HeaderLen], n-HeaderLen)[:n]
	if _, err := io.ReadFull(r.r, r.buf[HeaderLen:n]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Sample{}, fmt.Errorf("%w: stream ended inside payload", ErrTruncatedFrame)
		}
		return Sample{}, err
	}

	return decodeBody(r.buf[:n], h)
}

// Writer writes frames to a byte stream
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter returns a buffered frame Writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteSample encodes s and writes it. Call Flush to push buffered frames.
func (w *Writer) WriteSample(s Sample) error {
	frame, err := AppendFrame(w.buf[:0], s)
	if err != nil {
		return err
	}
	w.buf = frame
	_, err = w.w.Write(frame)
	return err
}

// Flush writes any buffered frames to the underlying writer
func (w *Writer) Flush() error {
	return w.w.Flush()
}
