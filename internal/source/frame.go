package source

import (
	"image"
	"time"
)

// Frame represents a captured camera frame. Frames are never mutated after
// they are handed out.
type Frame struct {
	Image     *image.RGBA
	Seq       uint64
	Timestamp time.Time
}

func (f *Frame) Width() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

func (f *Frame) Height() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Size is a frame size in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}
