package panel

import (
	"context"
	"time"
)

// run is the pacing loop. Each iteration fetches the latest frame, stores it
// (nil included) into the current frame slot, waits out a pause, sleeps one
// interval at the frequency read when the iteration began and then asks the
// renderer to redraw. It returns once the source is closed or ctx is done.
func (p *Panel) run(ctx context.Context) {
	missing := false
	for ctx.Err() == nil && p.src.IsOpen() {
		hz := p.freq.get()

		f := p.src.LatestFrame()
		p.stats.fetched.Add(1)
		if f == nil {
			p.stats.emptyFetches.Add(1)
			if !missing {
				p.log.Warn("frame unavailable", "source", p.src.Name())
			}
		} else if missing {
			p.log.Info("frames available again", "source", p.src.Name())
		}
		missing = f == nil
		p.frame.Store(f)

		if err := p.gate.Wait(ctx); err != nil {
			p.interrupted("pause", err)
		}
		if err := sleep(ctx, Interval(hz)); err != nil {
			p.interrupted("sleep", err)
		}

		p.stats.renderRequests.Add(1)
		p.renderer.RequestRender()
	}
}

func (p *Panel) interrupted(where string, err error) {
	p.stats.interrupted.Add(1)
	p.log.Debug("pacing wait interrupted", "at", where, "error", err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
