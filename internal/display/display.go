package display

import (
	"fmt"

	"github.com/junsooki/campanel/internal/source"
)

// Display shows a controller's frames and steers it from the keyboard.
type Display interface {
	SetController(c Controller)
	RequestRender()
	Run() error
}

// Controller is the panel a display shows and steers.
type Controller interface {
	Frame() *source.Frame
	Pause()
	Resume()
	Paused() bool
	SetFrequency(hz float64)
	Frequency() float64
	Source() source.Source
}

func statusLine(c Controller) string {
	if c == nil {
		return "connecting..."
	}
	state := "closed"
	if c.Source().IsOpen() {
		state = "open"
	}
	paused := ""
	if c.Paused() {
		paused = " [paused]"
	}
	seq := "-"
	if f := c.Frame(); f != nil {
		seq = fmt.Sprint(f.Seq)
	}
	return fmt.Sprintf("%s %s  %.3f Hz  frame %s%s\nspace pause  up/down rate  o open  c close",
		c.Source().Name(), state, c.Frequency(), seq, paused)
}
