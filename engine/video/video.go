// Package video defines the frame producer consumed by video nodes. Decoding of external
// containers is left to decoders registered with Register; the package ships a still-image
// decoder and an in-memory decoder.
package video

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNoDecoder is returned by Open when no decoder is registered for the file extension.
var ErrNoDecoder = errors.New("video: no decoder for file")

// ErrEndOfStream is returned by ReadFrame when the decoder has no more frames.
var ErrEndOfStream = errors.New("video: end of stream")

// PixelFormat is the layout of decoded frames.
type PixelFormat int

const (
	// PixelFormatUnknown is any layout the renderer cannot sample.
	PixelFormatUnknown PixelFormat = iota
	// PixelFormatYUV420P is planar Y, U, V with chroma at half resolution in both axes.
	PixelFormatYUV420P
	// PixelFormatRGB0 is packed 8-bit RGB with an unused fourth byte.
	PixelFormatRGB0
)

// String returns the conventional pixel format name.
func (p PixelFormat) String() string {
	switch p {
	case PixelFormatYUV420P:
		return "yuv420p"
	case PixelFormatRGB0:
		return "rgb0"
	default:
		return "unknown"
	}
}

// Frame is one decoded picture. Planes holds one slice per plane, rows tightly packed
// at Strides[i] bytes.
type Frame struct {
	Planes  [][]byte
	Strides []int
	Width   int
	Height  int
	// Timestamp is the presentation time relative to the start of the stream.
	Timestamp time.Duration
}

// Decoder produces frames of one stream.
type Decoder interface {
	// PixelFormat returns the layout of the frames ReadFrame produces.
	PixelFormat() PixelFormat

	// Width returns the frame width in pixels.
	Width() int

	// Height returns the frame height in pixels.
	Height() int

	// Seek positions the decoder so the next ReadFrame returns the frame at t.
	//
	// Parameters:
	//   - t: the position relative to the start of the stream
	//
	// Returns:
	//   - error: error if the stream cannot seek
	Seek(t time.Duration) error

	// ReadFrame decodes the next frame.
	//
	// Returns:
	//   - *Frame: the decoded frame, owned by the caller
	//   - error: ErrEndOfStream after the last frame
	ReadFrame() (*Frame, error)

	// Close releases the decoder.
	Close() error
}

// Opener creates a decoder for a file.
type Opener func(path string) (Decoder, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{
		"png":  OpenStill,
		"jpg":  OpenStill,
		"jpeg": OpenStill,
	}
)

// Register installs the opener used for files with extension ext (without the dot, case-insensitive).
// A later registration for the same extension replaces the earlier one.
func Register(ext string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[strings.ToLower(strings.TrimPrefix(ext, "."))] = open
}

// Open creates a decoder for path using the opener registered for its extension.
//
// Parameters:
//   - path: the media file
//
// Returns:
//   - Decoder: the decoder
//   - error: ErrNoDecoder if no opener handles the extension, or the opener's error
func Open(path string) (Decoder, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	openersMu.RLock()
	open, ok := openers[ext]
	openersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDecoder, path)
	}
	dec, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("video: open %s: %w", path, err)
	}
	return dec, nil
}
