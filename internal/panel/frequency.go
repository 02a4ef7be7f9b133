package panel

import (
	"math"
	"sync/atomic"
	"time"
)

const (
	// MinFrequency is one frame per minute.
	MinFrequency = 0.016
	// MaxFrequency is 25 frames per second.
	MaxFrequency = 25.0
	// DefaultFrequency is the frequency a new panel starts with.
	DefaultFrequency = MaxFrequency
)

// ClampFrequency limits hz to [MinFrequency, MaxFrequency]. NaN maps to
// MinFrequency.
func ClampFrequency(hz float64) float64 {
	switch {
	case math.IsNaN(hz), hz < MinFrequency:
		return MinFrequency
	case hz > MaxFrequency:
		return MaxFrequency
	}
	return hz
}

// Interval is the pause between two frames at hz, truncated to millisecond
// granularity.
func Interval(hz float64) time.Duration {
	return time.Duration(float64(time.Second) / ClampFrequency(hz)).Truncate(time.Millisecond)
}

type frequency struct {
	bits atomic.Uint64
}

func (f *frequency) set(hz float64) {
	f.bits.Store(math.Float64bits(ClampFrequency(hz)))
}

func (f *frequency) get() float64 {
	return math.Float64frombits(f.bits.Load())
}
