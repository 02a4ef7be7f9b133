package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
)

// JPEGEncoder encodes frames as JPEG.
type JPEGEncoder struct {
	mu      sync.Mutex
	quality int
	buf     bytes.Buffer
}

// NewJPEGEncoder creates a JPEG encoder with the given quality (1-100).
func NewJPEGEncoder(quality int) *JPEGEncoder {
	e := &JPEGEncoder{}
	e.SetQuality(quality)
	return e
}

func (e *JPEGEncoder) SetQuality(quality int) {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	e.mu.Lock()
	e.quality = quality
	e.mu.Unlock()
}

func (e *JPEGEncoder) Quality() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quality
}

// Encode returns a freshly allocated JPEG of img.
func (e *JPEGEncoder) Encode(img *image.RGBA) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode jpeg: nil image")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	return out, nil
}
