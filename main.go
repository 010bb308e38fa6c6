package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/maroda/respiro/actuator"
	Rd "github.com/maroda/respiro/display"
	Rm "github.com/maroda/respiro/monitor"
	Ro "github.com/maroda/respiro/obvy"
	Rs "github.com/maroda/respiro/sensor"
	Rt "github.com/maroda/respiro/types"
)

func init() {
	User := Rm.FillEnvVar("USER")
	fmt.Printf("Respiro initializing for ... %s\n", User)
}

func main() {
	config := Rm.LoadRuntimeConfig()

	// Optional tracing, all OTEL_* driven
	if Rm.FillEnvVarBool("RESPIRO_ENABLE_OTEL") {
		initOTel := Ro.InitOTelHNY
		if Rm.FillEnvVar("RESPIRO_OTEL_EXPORTER") == "otlp" {
			initOTel = Ro.InitOTelOTLP
		}
		shutdown, err := initOTel()
		if err != nil {
			slog.Error("Problem starting OTel", slog.Any("Error", err))
		} else {
			defer shutdown()
		}
	}

	arena := config.Arena
	if arena == (Rt.Arena{}) {
		arena = Rs.DefaultArena()
	}

	switch Rm.FillEnvVar("RESPIRO_MODE") {
	case "sensor":
		// Sensing side only: serve scans to a remote monitor
		Rs.RunSensor(newDevice(), config.SensorAddr, Rt.NarrowEnergy, arena)
	case "monitor":
		// Controlling side only, sensor runs elsewhere
		runMonitor(config)
	default:
		// Both halves in one process, the demo arrangement
		svc, err := Rs.NewService(newDevice(), Rt.NarrowEnergy, arena)
		if err != nil {
			slog.Error("Problem starting sensor service", slog.Any("Error", err))
			panic("Failed to start sensor service")
		}
		go func() {
			if err := svc.Start(config.SensorAddr); err != nil {
				slog.Error("Sensor service failed", slog.Any("Error", err))
			}
		}()

		// Wait until sensor configuration is done
		select {
		case <-svc.Ready:
		case <-time.After(10 * time.Second):
			slog.Error("Timed-out on sensor setup")
			os.Exit(1)
		}

		runMonitor(config)
		<-svc.Done
		fmt.Println("Done!")
	}
}

// newDevice picks the sensor hardware. Only the simulated
// breathing source ships in-tree; real hardware would slot in
// behind the same Device interface.
func newDevice() Rs.Device {
	return Rs.NewSimDevice(time.Now().UnixNano())
}

// runMonitor assembles and runs the controlling side.
func runMonitor(config Rm.ConfigFile) {
	lamp := connectLamp(config)

	transport, err := Rm.Dial(config.SensorAddr)
	if err != nil {
		slog.Error("Problem reaching sensor service", slog.Any("Error", err))
		panic("Failed to connect to sensor service")
	}

	stats := Ro.NewStatsInternal()
	est := Rm.NewEstimator(config.WindowSize)
	ctrl := Rm.NewController(transport, est, lamp, stats)
	ctrl.TickRate = config.TickRate()

	// Stats/state endpoint alongside the loop
	ctrl.ServeStats(config.StatsAddr)

	if Rm.FillEnvVarBool("RESPIRO_HEADLESS") {
		if err := ctrl.Run(); err != nil {
			os.Exit(1)
		}
		return
	}

	view, err := Rd.NewView(ctrl.Cmds)
	if err != nil {
		slog.Error("Problem starting view", slog.Any("Error", err))
		panic("Failed to start terminal view")
	}
	ctrl.Render = view.Render

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Run()
	}()

	view.HandleKeyboardEvent()
	err = <-done
	view.Fini()
	if err != nil {
		os.Exit(1)
	}
}

// connectLamp pairs with the bridge if needed and finds the lamp.
// Pairing and lookup failures are fatal: the loop never starts
// against an actuator nobody can see.
func connectLamp(config Rm.ConfigFile) actuator.Lamp {
	user := config.BridgeUser
	if user == "" {
		fmt.Println("Press the button on the Hue bridge, then press Enter")
		fmt.Scanln()

		u, err := actuator.Pair(config.BridgeAddr)
		if err != nil {
			if errors.Is(err, actuator.ErrLinkButton) {
				slog.Error("Bridge link button was not pressed")
			}
			slog.Error("Problem pairing with bridge", slog.Any("Error", err))
			os.Exit(1)
		}
		user = u
		fmt.Printf("Paired. Save this for next time: RESPIRO_BRIDGE_USER=%s\n", user)
	}

	lamp, err := actuator.Connect(config.BridgeAddr, user, config.LampName)
	if err != nil {
		slog.Error("Problem connecting to lamp", slog.Any("Error", err))
		os.Exit(1)
	}

	// The demo look: full saturation before the loop starts
	if err := lamp.SetSat(250); err != nil {
		slog.Error("Could not set saturation", slog.Any("Error", err))
	}
	return lamp
}
