package respiro

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	Rt "github.com/maroda/respiro/types"
)

// Device is the opaque sensor capability.
// Configure is called exactly once before the first read;
// TriggerRead performs one full scan and must be safe to call
// in a tight loop indefinitely.
type Device interface {
	Configure(profile Rt.Profile, arena Rt.Arena) error
	TriggerRead() (float64, error)
	Close() error
}

// DeviceError covers an unreachable or misconfigured sensor.
// At startup it is fatal, mid-stream it costs one tick.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("sensor device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ValidateArena rejects bounds the hardware would refuse,
// so misconfiguration fails before any scan is attempted.
func ValidateArena(a Rt.Arena) error {
	if a.MinR >= a.MaxR {
		return fmt.Errorf("arena range: minR %.1f >= maxR %.1f", a.MinR, a.MaxR)
	}
	if a.MinTheta >= a.MaxTheta {
		return fmt.Errorf("arena theta: min %.1f >= max %.1f", a.MinTheta, a.MaxTheta)
	}
	if a.MinPhi >= a.MaxPhi {
		return fmt.Errorf("arena phi: min %.1f >= max %.1f", a.MinPhi, a.MaxPhi)
	}
	if a.Resolution <= 0 {
		return fmt.Errorf("arena resolution must be positive, got %.2f", a.Resolution)
	}
	return nil
}

// DefaultArena matches the breathing demo geometry:
// 20-80cm range, -4..4 degrees on both axes, 1 unit resolution.
func DefaultArena() Rt.Arena {
	return Rt.Arena{
		MinR: 20, MaxR: 80,
		MinTheta: -4, MaxTheta: 4,
		MinPhi: -4, MaxPhi: 4,
		Resolution: 1,
	}
}

// SimDevice synthesizes the energy signature of a person breathing
// in front of the sensor: a slow sinusoid (~12 breaths/min) with
// scan-to-scan noise and the occasional shallow breath. Each
// TriggerRead advances one scan, as the hardware would.
type SimDevice struct {
	MU         sync.Mutex
	BreathRate float64 // breaths per minute
	Baseline   float64 // resting energy level
	Amplitude  float64 // breath swing above baseline
	Noise      float64 // uniform noise band
	configured bool
	closed     bool
	scan       int
	shallow    int // scans remaining in a shallow-breath stretch
	rng        *rand.Rand
}

// NewSimDevice seeds a simulated sensor with demo-friendly defaults.
func NewSimDevice(seed int64) *SimDevice {
	return &SimDevice{
		BreathRate: 12.0,
		Baseline:   0.0008,
		Amplitude:  0.0006,
		Noise:      0.00005,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Configure validates the arena, then arms the device.
// A second call is rejected the way the hardware rejects re-init.
func (d *SimDevice) Configure(profile Rt.Profile, arena Rt.Arena) error {
	d.MU.Lock()
	defer d.MU.Unlock()

	if d.configured {
		return &DeviceError{Op: "configure", Err: fmt.Errorf("already configured")}
	}
	if profile != Rt.NarrowEnergy && profile != Rt.WideEnergy {
		return &DeviceError{Op: "configure", Err: fmt.Errorf("unknown profile %d", profile)}
	}
	if err := ValidateArena(arena); err != nil {
		return &DeviceError{Op: "configure", Err: err}
	}

	d.configured = true
	return nil
}

// TriggerRead performs one simulated scan and returns its energy.
func (d *SimDevice) TriggerRead() (float64, error) {
	d.MU.Lock()
	defer d.MU.Unlock()

	if d.closed {
		return 0, &DeviceError{Op: "trigger", Err: fmt.Errorf("device closed")}
	}
	if !d.configured {
		return 0, &DeviceError{Op: "trigger", Err: fmt.Errorf("not configured")}
	}

	d.scan++

	// Roughly 4 scans/sec against the breath rate
	t := float64(d.scan) / 4.0
	cycle := d.BreathRate / 60.0 * 2 * math.Pi

	amp := d.Amplitude
	if d.shallow > 0 {
		amp = d.Amplitude * 0.3
		d.shallow--
	} else if d.rng.Float64() < 0.01 {
		// A shallow stretch lasts about two breaths
		d.shallow = 40
	}

	energy := d.Baseline + amp*math.Sin(t*cycle) + (d.rng.Float64()-0.5)*d.Noise
	if energy < 0 {
		energy = 0
	}
	return energy, nil
}

// Close releases the simulated handle. Idempotent.
func (d *SimDevice) Close() error {
	d.MU.Lock()
	defer d.MU.Unlock()
	d.closed = true
	return nil
}
