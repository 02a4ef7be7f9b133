// Package decoder turns encoded frames from the wire back into images.
package decoder

import "image"

// Decoder decodes one encoded frame. The returned image starts at the origin.
type Decoder interface {
	Decode(data []byte) (*image.RGBA, error)
}

var _ Decoder = (*JPEGDecoder)(nil)
