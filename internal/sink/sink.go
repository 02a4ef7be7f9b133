// Package sink turns render requests into encoded frames on the wire.
package sink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/junsooki/campanel/internal/encoder"
	"github.com/junsooki/campanel/internal/source"
	"github.com/junsooki/campanel/internal/transport"
)

// MaxBacklog is how many bytes may wait on the frames channel before the
// sink drops new frames instead of queueing them behind stale ones.
const MaxBacklog = 512 << 10

// FrameProvider hands out the frame to render.
type FrameProvider interface {
	Frame() *source.Frame
}

// Stats counts what the sink did with render requests.
type Stats struct {
	Sent      uint64
	Bytes     uint64
	Skipped   uint64 // no frame, no receiver or frame already sent
	Throttled  uint64 // dropped by the bitrate cap
	Backlogged uint64 // dropped while the channel still drains older frames
	Failed     uint64
}

// Sink is a render target that encodes the provider's current frame and
// sends it to a remote viewer. RequestRender only schedules work; encoding
// happens in Run.
type Sink struct {
	enc     encoder.Encoder
	limiter *rate.Limiter
	log     *slog.Logger
	work    chan struct{}

	mu       sync.Mutex
	provider FrameProvider
	out      transport.FrameSender
	lastSeq  uint64
	lastSent bool

	sent, bytes, skipped, throttled, backlogged, failed atomic.Uint64
}

// New creates a sink capped at maxBitrate bits per second. A cap of zero
// disables throttling. The budget starts at one second of traffic and grows
// to the largest frame seen, so a frame bigger than a second's budget is
// delayed rather than dropped forever.
func New(enc encoder.Encoder, maxBitrate int, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	burst := 0
	if maxBitrate > 0 {
		limit = rate.Limit(maxBitrate / 8)
		burst = maxBitrate / 8
	}
	return &Sink{
		enc:     enc,
		limiter: rate.NewLimiter(limit, burst),
		log:     logger.With("component", "sink"),
		work:    make(chan struct{}, 1),
	}
}

// Bind sets the frame provider, usually the panel driving this sink.
func (s *Sink) Bind(p FrameProvider) {
	s.mu.Lock()
	s.provider = p
	s.mu.Unlock()
}

// SetReceiver replaces the frame receiver. Nil pauses sending.
func (s *Sink) SetReceiver(out transport.FrameSender) {
	s.mu.Lock()
	s.out = out
	s.lastSent = false
	s.mu.Unlock()
}

// RequestRender implements panel.Renderer.
func (s *Sink) RequestRender() {
	select {
	case s.work <- struct{}{}:
	default:
	}
}

// Run encodes and sends frames until ctx is done.
func (s *Sink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.work:
			s.flush()
		}
	}
}

func (s *Sink) flush() {
	s.mu.Lock()
	provider, out := s.provider, s.out
	lastSeq, lastSent := s.lastSeq, s.lastSent
	s.mu.Unlock()

	if provider == nil || out == nil {
		s.skipped.Add(1)
		return
	}
	f := provider.Frame()
	if f == nil || f.Image == nil || (lastSent && f.Seq == lastSeq) {
		s.skipped.Add(1)
		return
	}
	if b, ok := out.(transport.BufferedFrameSender); ok {
		if queued := b.FramesBuffered(); queued > MaxBacklog {
			s.backlogged.Add(1)
			s.log.Debug("frames channel backlogged", "seq", f.Seq, "queued", queued)
			return
		}
	}

	data, err := s.enc.Encode(f.Image)
	if err != nil {
		s.failed.Add(1)
		s.log.Error("encode frame", "error", err, "seq", f.Seq)
		return
	}
	if n := len(data); s.limiter.Limit() != rate.Inf && n > s.limiter.Burst() {
		s.limiter.SetBurst(n)
	}
	if !s.limiter.AllowN(time.Now(), len(data)) {
		s.throttled.Add(1)
		s.log.Debug("frame over bitrate cap", "seq", f.Seq, "bytes", len(data))
		return
	}
	if err := out.SendFrame(data); err != nil {
		s.failed.Add(1)
		s.log.Debug("send frame", "error", err, "seq", f.Seq)
		return
	}

	s.mu.Lock()
	s.lastSeq, s.lastSent = f.Seq, true
	s.mu.Unlock()
	s.sent.Add(1)
	s.bytes.Add(uint64(len(data)))
}

func (s *Sink) Stats() Stats {
	return Stats{
		Sent:       s.sent.Load(),
		Bytes:      s.bytes.Load(),
		Skipped:    s.skipped.Load(),
		Throttled:  s.throttled.Load(),
		Backlogged: s.backlogged.Load(),
		Failed:     s.failed.Load(),
	}
}
