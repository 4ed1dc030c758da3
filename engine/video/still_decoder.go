package video

import (
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// OpenStill decodes a PNG or JPEG file into a single looping RGB0 frame.
//
// Parameters:
//   - path: the image file
//
// Returns:
//   - Decoder: a decoder that returns the image on every ReadFrame
//   - error: error if the image cannot be decoded
func OpenStill(path string) (Decoder, error) {
	img, err := common.DecodeImage(nil, path)
	if err != nil {
		return nil, err
	}
	return NewStillDecoder(img), nil
}

// NewStillDecoder wraps already decoded RGBA pixels as a single looping RGB0 frame.
func NewStillDecoder(img *common.TextureStagingData) Decoder {
	frame := &Frame{
		Planes:    [][]byte{img.Pixels},
		Strides:   []int{int(img.BytesPerRow())},
		Width:     int(img.Width),
		Height:    int(img.Height),
		Timestamp: time.Duration(0),
	}
	return NewMemoryDecoder(PixelFormatRGB0, frame.Width, frame.Height, []*Frame{frame}, true)
}
