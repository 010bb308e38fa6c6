package respiro

import (
	"time"

	Rt "github.com/maroda/respiro/types"
)

const (
	// One rising sample is jitter, two is a breath
	defaultDebounce = 2

	// The lamp is fully red 13 seconds after the last peak
	DefaultMaxPeakInterval = 13 * time.Second
)

// PeakTimer watches the smoothed series for breath crests and
// tracks how stale the last one has become. A peak is declared
// when the series turns from rising to falling, debounced by
// requiring the rising run to have at least Debounce strict steps.
type PeakTimer struct {
	Debounce  int
	prev      float64
	havePrev  bool
	risingRun int
	lastPeak  time.Time
	hasPeak   bool
}

// NewPeakTimer builds a detector with the given debounce,
// falling back to the default when it is not positive.
func NewPeakTimer(debounce int) *PeakTimer {
	if debounce < 1 {
		debounce = defaultDebounce
	}
	return &PeakTimer{Debounce: debounce}
}

// Observe feeds one smoothed value at time now.
// Returns the PeakEvent on the tick a crest is detected, else nil.
// Equal consecutive values continue a run without extending it.
func (p *PeakTimer) Observe(smoothed float64, now time.Time) *Rt.PeakEvent {
	if !p.havePrev {
		p.prev = smoothed
		p.havePrev = true
		return nil
	}

	if smoothed > p.prev {
		p.risingRun++
		p.prev = smoothed
		return nil
	}
	if smoothed == p.prev {
		return nil
	}

	// Falling: the previous value was the crest, if the climb was real
	crest := p.prev
	run := p.risingRun
	p.risingRun = 0
	p.prev = smoothed

	if run < p.Debounce {
		return nil
	}

	p.lastPeak = now
	p.hasPeak = true
	return &Rt.PeakEvent{Timestamp: now, Value: crest}
}

// TimeSinceLastPeak grows monotonically from the last crest.
// Before any peak has ever been seen it reports zero:
// assume freshly-breathing until proven otherwise.
func (p *PeakTimer) TimeSinceLastPeak(now time.Time) time.Duration {
	if !p.hasPeak {
		return 0
	}
	return now.Sub(p.lastPeak)
}

// StalenessRatio clamps elapsed/maxExpected into [0,1].
func (p *PeakTimer) StalenessRatio(now time.Time, maxExpected time.Duration) float64 {
	if maxExpected <= 0 {
		return 0
	}
	ratio := p.TimeSinceLastPeak(now).Seconds() / maxExpected.Seconds()
	if ratio > 1 {
		return 1
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}
