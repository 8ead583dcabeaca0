// Package relay maintains the channel between the bridge and the browser-side
// relay that fronts the live page. Messages are JSON bodies framed with a
// 4-byte little-endian length prefix; the connection reconnects on a fixed
// delay and tracks outbound requests in a pending map.
package relay

import (
	"encoding/binary"
	"fmt"
	"io"
)

// headerSize is the length prefix: 4 bytes, little endian.
const headerSize = 4

// DefaultMaxFrameBytes caps a single frame's payload.
const DefaultMaxFrameBytes = 4 << 20

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write frame payload: %w", err)
	}
	return nil
}

// Decoder accumulates raw bytes and extracts complete frames. A single Push
// may yield zero frames (partial data) or several (coalesced reads); any
// trailing partial frame stays buffered for the next Push.
type Decoder struct {
	buf []byte
	max int
}

// NewDecoder creates a frame decoder. maxFrameBytes <= 0 selects the default
// limit.
func NewDecoder(maxFrameBytes int) *Decoder {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Decoder{max: maxFrameBytes}
}

// Push appends data to the internal buffer and returns every complete frame
// now available. A frame longer than the configured maximum is a hard error;
// the connection carrying it cannot be resynchronized and must be dropped.
func (d *Decoder) Push(data []byte) ([][]byte, error) {
	d.buf = append(d.buf, data...)

	var frames [][]byte
	for {
		if len(d.buf) < headerSize {
			return frames, nil
		}

		size := int(binary.LittleEndian.Uint32(d.buf[:headerSize]))
		if size > d.max {
			return frames, fmt.Errorf("frame of %d bytes exceeds limit of %d", size, d.max)
		}
		if len(d.buf) < headerSize+size {
			return frames, nil
		}

		frame := make([]byte, size)
		copy(frame, d.buf[headerSize:headerSize+size])
		frames = append(frames, frame)
		d.buf = d.buf[headerSize+size:]
	}
}

// Buffered reports how many bytes are waiting for the rest of their frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
