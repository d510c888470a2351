// ABOUTME: Error taxonomy for the webmsg codec
// ABOUTME: Sentinel errors plus a positional error for demultiplexing
package webmsg

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedFrame means the buffer is shorter than the header or the
	// declared frame length. Callers may retry once more bytes arrive.
	ErrTruncatedFrame = errors.New("webmsg: truncated frame")

	// ErrUnsupportedVersion means the format version is not implemented.
	// The frame layout is unknown, so the rest of a buffer cannot be parsed.
	ErrUnsupportedVersion = errors.New("webmsg: unsupported format version")

	ErrUnsupportedByteOrder = errors.New("webmsg: unsupported byte order")
	ErrInvalidSampleCount   = errors.New("webmsg: invalid sample count")
	ErrInvalidKind          = errors.New("webmsg: invalid message kind")
	ErrInvalidTimestamp     = errors.New("webmsg: timestamp out of range")
	ErrUnsupportedLayout    = errors.New("webmsg: unsupported header layout")
)

// FrameError locates a failure inside a multi-frame buffer
type FrameError struct {
	Offset int // byte offset of the failing frame
	Index  int // zero-based index of the failing frame
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d at offset %d: %v", e.Index, e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
