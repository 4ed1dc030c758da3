package video

import (
	"fmt"
	"sync"
	"time"
)

// memoryDecoder plays a fixed list of frames, looping when Loop is set.
type memoryDecoder struct {
	mu     sync.Mutex
	format PixelFormat
	width  int
	height int
	frames []*Frame
	next   int
	loop   bool
	closed bool
}

var _ Decoder = &memoryDecoder{}

// NewMemoryDecoder creates a decoder over frames already in memory.
//
// Parameters:
//   - format: the pixel format of every frame
//   - width: frame width in pixels
//   - height: frame height in pixels
//   - frames: the frames in presentation order
//   - loop: restart from the first frame after the last one
//
// Returns:
//   - Decoder: the decoder
func NewMemoryDecoder(format PixelFormat, width, height int, frames []*Frame, loop bool) Decoder {
	return &memoryDecoder{
		format: format,
		width:  width,
		height: height,
		frames: frames,
		loop:   loop,
	}
}

func (m *memoryDecoder) PixelFormat() PixelFormat {
	return m.format
}

func (m *memoryDecoder) Width() int {
	return m.width
}

func (m *memoryDecoder) Height() int {
	return m.height
}

func (m *memoryDecoder) Seek(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("video: seek on closed decoder")
	}
	m.next = 0
	for i, f := range m.frames {
		if f.Timestamp <= t {
			m.next = i
		}
	}
	return nil
}

func (m *memoryDecoder) ReadFrame() (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("video: read on closed decoder")
	}
	if m.next >= len(m.frames) {
		if !m.loop || len(m.frames) == 0 {
			return nil, ErrEndOfStream
		}
		m.next = 0
	}
	f := m.frames[m.next]
	m.next++
	return f, nil
}

func (m *memoryDecoder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
