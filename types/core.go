package types

/*

	These are the "immutable" core types of Respiro,
	provided for cross-package use (sensor, monitor, display) and testing.

	There are no functions defined here.
	Struct constructors are housed in their own packages.
	Methods taking these types should create local aliases,
	for example: type Readings []Rt.Reading

*/

import "time"

// Reading is one scalar energy value from a single sensor scan.
// It is ephemeral: folded into the sample window, then discarded.
type Reading struct {
	Value float64   // reflected-signal energy summed over the arena
	At    time.Time // arrival time, set by the controlling side
}

// BreathState is derived fresh on every tick from the sample window.
type BreathState struct {
	Smoothed  float64 // mean of the last three readings (or fewer)
	PeakValue float64 // maximum value currently in the window
	Intensity float64 // Smoothed / PeakValue, clamped to [0,1]
	Window    int     // number of readings currently held
}

// The PeakEvent is the building block of this tool.
// When the smoothed series turns from rising to falling, a breath
// has crested: the event marks when, and how high.
type PeakEvent struct {
	Timestamp time.Time // when the crest was detected
	Value     float64   // the smoothed value at the crest
}

// Snapshot is the per-tick aggregate handed to the display
// and served on /api/state.
type Snapshot struct {
	State      BreathState `json:"state"`
	Staleness  float64     `json:"staleness"`  // 0 fresh .. 1 stale
	WindowCap  int         `json:"windowCap"`  // current window size setting
	Brightness int         `json:"brightness"` // last computed lamp brightness
	Hue        int         `json:"hue"`        // last computed lamp hue
	Tick       uint64      `json:"tick"`
}

// Profile selects the sensor scan mode.
type Profile int

const (
	NarrowEnergy Profile = iota // narrow-beam energy aggregation (breathing)
	WideEnergy                  // wide-beam variant, unused by the monitor
)

// Arena is the 3D spatial region the sensor scans:
// range in cm, azimuth and elevation in degrees.
type Arena struct {
	MinR       float64 `json:"minR"`
	MaxR       float64 `json:"maxR"`
	MinTheta   float64 `json:"minTheta"`
	MaxTheta   float64 `json:"maxTheta"`
	MinPhi     float64 `json:"minPhi"`
	MaxPhi     float64 `json:"maxPhi"`
	Resolution float64 `json:"res"`
}

// Command is the closed set of runtime controls
// consumed by the controller between ticks.
type Command int

const (
	WindowUp    Command = iota // grow the sample window by the step
	WindowDown                 // shrink the sample window by the step
	WindowReset                // return to the configured default
	Quit                       // orderly shutdown of both loops
)
