package panel

import "sync/atomic"

// Stats is a snapshot of a panel's counters.
type Stats struct {
	Fetched        uint64 // frames pulled from the source, nil fetches included
	EmptyFetches   uint64 // fetches that returned no frame
	RenderRequests uint64
	Interrupted    uint64 // pause waits or sleeps cut short by cancellation
	LoopsStarted   uint64
	LoopsStopped   uint64 // loops that exited within the shutdown bound
	SlowShutdowns  uint64 // loops still running when the shutdown bound elapsed
}

type counters struct {
	fetched        atomic.Uint64
	emptyFetches   atomic.Uint64
	renderRequests atomic.Uint64
	interrupted    atomic.Uint64
	loopsStarted   atomic.Uint64
	loopsStopped   atomic.Uint64
	slowShutdowns  atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Fetched:        c.fetched.Load(),
		EmptyFetches:   c.emptyFetches.Load(),
		RenderRequests: c.renderRequests.Load(),
		Interrupted:    c.interrupted.Load(),
		LoopsStarted:   c.loopsStarted.Load(),
		LoopsStopped:   c.loopsStopped.Load(),
		SlowShutdowns:  c.slowShutdowns.Load(),
	}
}
