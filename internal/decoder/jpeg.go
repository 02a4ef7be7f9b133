package decoder

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
)

// JPEGDecoder decodes JPEG bytes into *image.RGBA.
type JPEGDecoder struct{}

func NewJPEGDecoder() *JPEGDecoder {
	return &JPEGDecoder{}
}

func (d *JPEGDecoder) Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode jpeg: empty payload")
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	// JPEG decodes to YCbCr; the display wants RGBA.
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}
