// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
// Video decoders hand frames to the renderer in this form.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture, 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// BytesPerRow returns the row pitch of the staged RGBA pixels.
//
// Returns:
//   - uint32: width * 4
func (t *TextureStagingData) BytesPerRow() uint32 {
	return t.Width * 4
}

// DecodeImage decodes a PNG or JPEG image to raw RGBA pixel data.
// Uses the embedded data bytes when present, otherwise loads from path on disk.
// Reference: https://pkg.go.dev/image
//
// Parameters:
//   - data: encoded image bytes, may be empty
//   - path: path of an image file, used when data is empty
//
// Returns:
//   - *TextureStagingData: the decoded RGBA pixels and dimensions
//   - error: error if decoding fails
func DecodeImage(data []byte, path string) (*TextureStagingData, error) {
	var img image.Image
	var err error

	if len(data) > 0 {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedded image: %w", err)
		}
	} else if path != "" {
		file, fileErr := os.Open(path)
		if fileErr != nil {
			return nil, fmt.Errorf("failed to open image file %s: %w", path, fileErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image file %s: %w", path, err)
		}
	} else {
		return nil, fmt.Errorf("image has neither data nor path")
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}
