package respiro

import (
	Rt "github.com/maroda/respiro/types"
)

const (
	// Short smoothing keeps the lamp responsive;
	// the full window only governs the normalization ceiling.
	smoothSpan = 3
)

// Estimator folds the reading stream into a bounded FIFO window
// and derives the normalized breath intensity on every tick.
// The window cap is the one user-tunable knob: small is responsive,
// large is stable.
type Estimator struct {
	Window  []float64
	Cap     int
	Default int
	peak    float64
}

// NewEstimator starts with an empty window capped at size.
func NewEstimator(size int) *Estimator {
	if size < 1 {
		size = 1
	}
	return &Estimator{
		Window:  make([]float64, 0, size),
		Cap:     size,
		Default: size,
	}
}

// SetWindowSize mutates the cap immediately.
// Shrinking evicts the oldest entries right away;
// growing just raises the ceiling and lets the window refill.
func (e *Estimator) SetWindowSize(n int) {
	if n < 1 {
		n = 1
	}
	e.Cap = n
	if len(e.Window) > e.Cap {
		evicted := e.Window[:len(e.Window)-e.Cap]
		e.Window = e.Window[len(e.Window)-e.Cap:]
		for _, v := range evicted {
			if v == e.peak {
				e.rescanPeak()
				break
			}
		}
	}
}

// ResetWindowSize returns the cap to its startup default.
func (e *Estimator) ResetWindowSize() {
	e.SetWindowSize(e.Default)
}

// rescanPeak recomputes the window max from scratch.
// Only needed when an evicted entry held the current max.
func (e *Estimator) rescanPeak() {
	e.peak = 0
	for _, v := range e.Window {
		if v > e.peak {
			e.peak = v
		}
	}
}

// Ingest appends one reading and recomputes the BreathState.
func (e *Estimator) Ingest(r float64) Rt.BreathState {
	e.Window = append(e.Window, r)

	for len(e.Window) > e.Cap {
		evicted := e.Window[0]
		e.Window = e.Window[1:]
		if evicted == e.peak {
			e.rescanPeak()
		}
	}
	if r > e.peak {
		e.peak = r
	}

	// Mean of the last three (or fewer) readings
	span := smoothSpan
	if len(e.Window) < span {
		span = len(e.Window)
	}
	var sum float64
	for _, v := range e.Window[len(e.Window)-span:] {
		sum += v
	}
	smoothed := sum / float64(span)

	// Normalize against the window max, guarding the empty case
	var intensity float64
	if e.peak > 0 {
		intensity = smoothed / e.peak
		if intensity > 1 {
			intensity = 1
		}
		if intensity < 0 {
			intensity = 0
		}
	}

	return Rt.BreathState{
		Smoothed:  smoothed,
		PeakValue: e.peak,
		Intensity: intensity,
		Window:    len(e.Window),
	}
}
