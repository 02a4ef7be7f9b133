// Package encoder compresses frames for the frames data channel.
package encoder

import "image"

// Encoder compresses one frame. Implementations are safe for concurrent use
// and return a buffer the caller owns.
type Encoder interface {
	Encode(img *image.RGBA) ([]byte, error)
	SetQuality(quality int)
}

var _ Encoder = (*JPEGEncoder)(nil)
