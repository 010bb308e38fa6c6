package respiro

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/maroda/respiro/actuator"
	Ro "github.com/maroda/respiro/obvy"
	Rt "github.com/maroda/respiro/types"
)

const (
	// Hue color wheel endpoints:
	// blue while breathing, sliding to red as peaks go stale
	hueFresh = 43690
	hueStale = 65000

	// Brightness floor and span, mapped over intensity
	briFloor = 60
	briSpan  = 195
	briMax   = 254

	// Don't flood the bridge with sub-visible changes
	briDeadband = 2

	// Window resize step and clamps, per keypress
	windowStep = 10
	windowMin  = 10
	windowMax  = 250

	// Consecutive transport failures before the sensing
	// side is presumed dead
	defaultMaxTimeouts = 5

	// Below this window max, nobody is in the arena
	defaultMinEnergy = 0.0002

	defaultTickRate = 250 * time.Millisecond
)

// Controller drives the main loop: one sensor request per tick,
// fold the reading, time the peaks, push the lamp. All breathing
// state is owned here and never touched concurrently.
type Controller struct {
	Transport       Transport
	Est             *Estimator
	Peak            *PeakTimer
	Lamp            actuator.Lamp
	Stats           *Ro.StatsInternal
	Cmds            chan Rt.Command
	Render          func(Rt.Snapshot) // optional display hook
	TickRate        time.Duration
	MaxPeakInterval time.Duration
	MaxTimeouts     int
	MinEnergy       float64

	timeouts int
	prevBri  int
	tick     uint64

	// snap is read by the data mux from another goroutine
	snapMU sync.Mutex
	snap   Rt.Snapshot
}

// NewController assembles the loop with defaults from the demo.
func NewController(t Transport, est *Estimator, lamp actuator.Lamp, stats *Ro.StatsInternal) *Controller {
	return &Controller{
		Transport:       t,
		Est:             est,
		Peak:            NewPeakTimer(FillEnvVarInt("RESPIRO_PEAK_DEBOUNCE", 0)),
		Lamp:            lamp,
		Stats:           stats,
		Cmds:            make(chan Rt.Command, 8),
		TickRate:        defaultTickRate,
		MaxPeakInterval: DefaultMaxPeakInterval,
		MaxTimeouts:     defaultMaxTimeouts,
		MinEnergy:       defaultMinEnergy,
	}
}

// TargetFor maps breath state to lamp values.
// Brightness scales with intensity; hue slides blue to red with
// staleness; the red shift also lifts brightness so a still lamp
// is unmistakable.
func TargetFor(intensity, staleness float64) (bri int, hue int) {
	hue = hueFresh + int(staleness*float64(hueStale-hueFresh))
	if hue > hueStale {
		hue = hueStale
	}

	bri = briFloor + int(briSpan*intensity)
	bri += (hue - hueFresh) / 42
	if bri > briMax {
		bri = briMax
	}
	if bri < 0 {
		bri = 0
	}
	return bri, hue
}

// Tick runs one loop iteration. Returns a fatal error only when
// the sensing side is presumed dead.
func (c *Controller) Tick(now time.Time) error {
	c.tick++

	start := time.Now()
	value, err := c.Transport.TriggerRead()
	c.Stats.RecReadTimer(time.Since(start).Seconds())

	if err != nil {
		// This tick's reading is lost, not retried
		reason := Ro.SkipDevice
		if errors.Is(err, ErrTimeout) {
			reason = Ro.SkipTimeout
		}
		c.timeouts++
		c.Stats.RecSkip(reason)
		slog.Error("Skipping tick", slog.Uint64("tick", c.tick), slog.Any("Error", err))

		if c.timeouts >= c.MaxTimeouts {
			return fmt.Errorf("sensing side presumed dead after %d failures: %w", c.timeouts, err)
		}
		return nil
	}
	c.timeouts = 0

	state := c.Est.Ingest(value)

	if ev := c.Peak.Observe(state.Smoothed, now); ev != nil {
		slog.Debug("Breath peak", slog.Float64("value", ev.Value))
	}
	staleness := c.Peak.StalenessRatio(now, c.MaxPeakInterval)

	// Nobody breathing in the arena reads as fully stale
	if state.PeakValue < c.MinEnergy {
		staleness = 1
	}

	bri, hue := TargetFor(state.Intensity, staleness)
	c.pushLamp(bri, hue)

	snap := Rt.Snapshot{
		State:      state,
		Staleness:  staleness,
		WindowCap:  c.Est.Cap,
		Brightness: bri,
		Hue:        hue,
		Tick:       c.tick,
	}
	c.snapMU.Lock()
	c.snap = snap
	c.snapMU.Unlock()

	c.Stats.RecTick()
	c.Stats.RecBreath(state.Intensity, staleness, c.Est.Cap)

	if c.Render != nil {
		c.Render(snap)
	}
	return nil
}

// pushLamp applies the target, suppressing sub-visible changes.
// A failed push is logged and counted, never queued: the next
// tick carries fresh values anyway.
func (c *Controller) pushLamp(bri, hue int) {
	if abs(bri-c.prevBri) <= briDeadband {
		return
	}

	if err := c.Lamp.SetBrightness(uint8(bri)); err != nil {
		c.Stats.RecSkip(Ro.SkipActuator)
		c.Stats.RecPushError()
		slog.Error("Could not push brightness", slog.Any("Error", err))
		return
	}
	c.prevBri = bri

	if err := c.Lamp.SetHue(uint16(hue)); err != nil {
		c.Stats.RecPushError()
		slog.Error("Could not push hue", slog.Any("Error", err))
	}
}

// handleCommand mutates the window size or ends the loop.
func (c *Controller) handleCommand(cmd Rt.Command) (quit bool) {
	switch cmd {
	case Rt.WindowUp:
		c.resizeWindow(c.Est.Cap + windowStep)
	case Rt.WindowDown:
		c.resizeWindow(c.Est.Cap - windowStep)
	case Rt.WindowReset:
		c.Est.ResetWindowSize()
		slog.Info("Samples", slog.Int("window", c.Est.Cap))
	case Rt.Quit:
		return true
	}
	return false
}

func (c *Controller) resizeWindow(n int) {
	if n > windowMax {
		n = windowMax
	}
	if n < windowMin {
		n = windowMin
	}
	c.Est.SetWindowSize(n)
	slog.Info("Samples", slog.Int("window", c.Est.Cap))
}

// DrainCommands applies every queued command without blocking.
// Reports whether Quit was among them.
func (c *Controller) DrainCommands() bool {
	for {
		select {
		case cmd := <-c.Cmds:
			if c.handleCommand(cmd) {
				return true
			}
		default:
			return false
		}
	}
}

// Snapshot returns the last completed tick's aggregate.
func (c *Controller) Snapshot() Rt.Snapshot {
	c.snapMU.Lock()
	defer c.snapMU.Unlock()
	return c.snap
}

// Run is the controlling-side loop. It blocks until Quit arrives
// or the transport goes fatally quiet, then performs the orderly
// STOP exchange and releases the lamp.
func (c *Controller) Run() error {
	// Panic recovery and logging
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in run loop", slog.Any("panic", r))
			slog.Error("Recovered from panic", slog.String("stack", string(debug.Stack())))
		}
	}()

	slog.Info("Starting breath monitor",
		slog.Int("window", c.Est.Cap),
		slog.Duration("tick", c.TickRate))

	if err := c.Lamp.TurnOn(); err != nil {
		slog.Error("Could not light the lamp", slog.Any("Error", err))
		return err
	}

	ticker := time.NewTicker(c.TickRate)
	defer ticker.Stop()

	var fatal error
	for fatal == nil {
		select {
		case cmd := <-c.Cmds:
			if c.handleCommand(cmd) {
				c.shutdown()
				return nil
			}
		case <-ticker.C:
			fatal = c.Tick(time.Now())
		}
	}

	slog.Error("Monitor loop ending", slog.Any("Error", fatal))
	c.shutdown()
	return fatal
}

// shutdown performs the orderly STOP exchange and closes both ends.
func (c *Controller) shutdown() {
	if err := c.Transport.Stop(); err != nil {
		slog.Error("STOP exchange failed", slog.Any("Error", err))
	}
	if err := c.Transport.Close(); err != nil {
		slog.Error("Could not close transport", slog.Any("Error", err))
	}
	if err := c.Lamp.Close(); err != nil {
		slog.Error("Could not release lamp", slog.Any("Error", err))
	}
	slog.Info("Monitor stopped", slog.Uint64("ticks", c.tick))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
