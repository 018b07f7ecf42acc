package samplebuffer

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// FloorFrames is the minimum number of frames a Buffer can hold.
//
// Hosts and plugins rarely agree on block sizes. Keeping at least 4096 frames
// trades a small worst-case startup latency for never reallocating while audio
// is running.
const FloorFrames = 4096

// ErrInvalidFrameWidth is returned by New when the frame width is not positive.
var ErrInvalidFrameWidth = errors.New("frame width must be positive")

// ErrInvalidFrameCount is returned by New when the frame count is negative.
var ErrInvalidFrameCount = errors.New("frame count must not be negative")

// Buffer is a fixed-capacity byte buffer with a single write offset.
//
// The contents occupy buf[:off]. Writes append at off, reads consume from the
// front and shift the remainder down, so 0 <= off <= len(buf) always holds.
type Buffer struct {
	buf []byte
	off int
}

// New allocates a Buffer holding max(minFrames, FloorFrames) frames of
// frameWidth bytes each.
func New(minFrames, frameWidth int) (*Buffer, error) {
	if frameWidth <= 0 {
		return nil, fmt.Errorf("samplebuffer: %w: %d", ErrInvalidFrameWidth, frameWidth)
	}
	if minFrames < 0 {
		return nil, fmt.Errorf("samplebuffer: %w: %d", ErrInvalidFrameCount, minFrames)
	}

	frames := max(minFrames, FloorFrames)

	logrus.WithFields(logrus.Fields{
		"function":    "samplebuffer.New",
		"min_frames":  minFrames,
		"frames":      frames,
		"frame_width": frameWidth,
		"capacity":    frames * frameWidth,
	}).Debug("Allocating sample buffer")

	return &Buffer{buf: make([]byte, frames*frameWidth)}, nil
}

// Write appends p if it fits entirely in the free space. Otherwise nothing is
// written and the contents and offset are left unchanged. The return value
// only reports which of the two happened; the buffer keeps no record of loss.
func (b *Buffer) Write(p []byte) bool {
	if b.off+len(p) > len(b.buf) {
		return false
	}
	b.off += copy(b.buf[b.off:], p)
	return true
}

// Read copies min(len(dst), Len()) bytes from the head of the buffer into dst,
// moves the remaining bytes to the front and returns the number copied. It
// never zero-pads dst.
func (b *Buffer) Read(dst []byte) int {
	n := copy(dst, b.buf[:b.off])
	copy(b.buf, b.buf[n:b.off])
	b.off -= n
	return n
}

// ReadBlock reads len(dst) bytes according to policy and returns the number of
// valid bytes placed in dst. See UnderrunPolicy for how a shortfall is handled.
func (b *Buffer) ReadBlock(dst []byte, policy UnderrunPolicy) int {
	if b.off >= len(dst) {
		return b.Read(dst)
	}

	switch policy {
	case PolicyZeroPad:
		n := b.Read(dst)
		clear(dst[n:])
		return len(dst)
	case PolicyPartial:
		return b.Read(dst)
	default:
		return 0
	}
}

// Len returns the number of buffered bytes (the write offset).
func (b *Buffer) Len() int {
	return b.off
}

// Cap returns the capacity in bytes. A released buffer has capacity 0.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Free returns the number of bytes that can still be written.
func (b *Buffer) Free() int {
	return len(b.buf) - b.off
}

// Available reports whether at least n bytes are buffered.
func (b *Buffer) Available(n int) bool {
	return b.off >= n
}

// Reset discards the buffered bytes without releasing storage.
func (b *Buffer) Reset() {
	b.off = 0
}

// Release frees the backing storage. Calling it again, or on a nil buffer,
// is a no-op. A released buffer rejects every non-empty write.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.buf = nil
	b.off = 0
}
