package respiro_test

import (
	"testing"

	Rs "github.com/maroda/respiro/sensor"
	Rt "github.com/maroda/respiro/types"
)

func TestValidateArena(t *testing.T) {
	t.Run("The default geometry is valid", func(t *testing.T) {
		assertError(t, Rs.ValidateArena(Rs.DefaultArena()), nil)
	})

	t.Run("Inverted or empty bounds are rejected", func(t *testing.T) {
		cases := []struct {
			name  string
			arena Rt.Arena
		}{
			{"range inverted", Rt.Arena{MinR: 80, MaxR: 20, MinTheta: -4, MaxTheta: 4, MinPhi: -4, MaxPhi: 4, Resolution: 1}},
			{"theta inverted", Rt.Arena{MinR: 20, MaxR: 80, MinTheta: 4, MaxTheta: -4, MinPhi: -4, MaxPhi: 4, Resolution: 1}},
			{"phi empty", Rt.Arena{MinR: 20, MaxR: 80, MinTheta: -4, MaxTheta: 4, MinPhi: 4, MaxPhi: 4, Resolution: 1}},
			{"zero resolution", Rt.Arena{MinR: 20, MaxR: 80, MinTheta: -4, MaxTheta: 4, MinPhi: -4, MaxPhi: 4}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				assertGotError(t, Rs.ValidateArena(tc.arena))
			})
		}
	})
}

func TestConfigure(t *testing.T) {
	t.Run("Arms with a known profile and valid arena", func(t *testing.T) {
		dev := Rs.NewSimDevice(1)
		assertError(t, dev.Configure(Rt.NarrowEnergy, Rs.DefaultArena()), nil)
	})

	t.Run("Re-init is rejected like the hardware does", func(t *testing.T) {
		dev := Rs.NewSimDevice(1)
		assertError(t, dev.Configure(Rt.NarrowEnergy, Rs.DefaultArena()), nil)
		assertGotError(t, dev.Configure(Rt.NarrowEnergy, Rs.DefaultArena()))
	})

	t.Run("Unknown profiles are rejected", func(t *testing.T) {
		dev := Rs.NewSimDevice(1)
		assertGotError(t, dev.Configure(Rt.Profile(99), Rs.DefaultArena()))
	})

	t.Run("A bad arena is caught before any scan", func(t *testing.T) {
		dev := Rs.NewSimDevice(1)
		assertGotError(t, dev.Configure(Rt.NarrowEnergy, Rt.Arena{}))
	})
}

func TestTriggerRead(t *testing.T) {
	t.Run("Refuses before configuration", func(t *testing.T) {
		dev := Rs.NewSimDevice(1)
		_, err := dev.TriggerRead()
		assertGotError(t, err)
	})

	t.Run("Refuses after close", func(t *testing.T) {
		dev := Rs.NewSimDevice(1)
		assertError(t, dev.Configure(Rt.NarrowEnergy, Rs.DefaultArena()), nil)
		assertError(t, dev.Close(), nil)
		_, err := dev.TriggerRead()
		assertGotError(t, err)
	})

	t.Run("Scans look like breathing", func(t *testing.T) {
		dev := Rs.NewSimDevice(1)
		assertError(t, dev.Configure(Rt.NarrowEnergy, Rs.DefaultArena()), nil)

		min, max := 1.0, 0.0
		for i := 0; i < 100; i++ {
			v, err := dev.TriggerRead()
			assertError(t, err, nil)
			if v < 0 {
				t.Fatalf("negative energy %f on scan %d", v, i)
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}

		// Several cycles fit in 100 scans, so the swing shows
		// even through a shallow-breath stretch
		if max-min < dev.Amplitude*0.3 {
			t.Errorf("no breathing swing: min %f max %f", min, max)
		}
		if max > dev.Baseline+dev.Amplitude+dev.Noise {
			t.Errorf("energy above physical ceiling: %f", max)
		}
	})

	t.Run("The same seed replays the same scans", func(t *testing.T) {
		a := Rs.NewSimDevice(7)
		b := Rs.NewSimDevice(7)
		assertError(t, a.Configure(Rt.NarrowEnergy, Rs.DefaultArena()), nil)
		assertError(t, b.Configure(Rt.NarrowEnergy, Rs.DefaultArena()), nil)

		for i := 0; i < 50; i++ {
			va, _ := a.TriggerRead()
			vb, _ := b.TriggerRead()
			if va != vb {
				t.Fatalf("scan %d diverged: %f vs %f", i, va, vb)
			}
		}
	})
}
