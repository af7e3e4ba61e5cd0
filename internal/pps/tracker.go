package pps

import (
	"sync"
	"time"
)

// pulseTracker accumulates pulse timestamps. PPS lines fire at 1 Hz, so
// an interval much longer than a second means missed pulses.
type pulseTracker struct {
	mu    sync.Mutex
	count uint64
	last  time.Time
	mean  float64 // exponential moving average of the pulse interval
}

func newPulseTracker() *pulseTracker {
	return &pulseTracker{}
}

// observe records a pulse at ts and returns how many expected pulses
// were missed since the previous one (0 when on time).
func (p *pulseTracker) observe(ts time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	missed := 0
	if !p.last.IsZero() && ts.After(p.last) {
		interval := ts.Sub(p.last).Seconds()
		if p.mean == 0 {
			p.mean = interval
		} else {
			p.mean = 0.9*p.mean + 0.1*interval
		}
		if interval > 1.5 {
			missed = int(interval + 0.5)
			if missed > 0 {
				missed--
			}
		}
	}
	p.count++
	p.last = ts
	return missed
}

func (p *pulseTracker) snapshot() (count uint64, last time.Time, mean float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count, p.last, p.mean
}
