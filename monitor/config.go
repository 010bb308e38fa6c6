package respiro

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	Rt "github.com/maroda/respiro/types"
)

// ConfigFile is the startup configuration off local disk.
// Everything has a compiled default, so the file is optional;
// any field left zero keeps its default.
type ConfigFile struct {
	BridgeAddr string   `json:"bridge_addr"` // Philips Hue bridge IP
	BridgeUser string   `json:"bridge_user"` // whitelisted user, empty means pair first
	LampName   string   `json:"lamp_name"`   // which lamp follows the breathing
	SensorAddr string   `json:"sensor_addr"` // sensing side host:port
	StatsAddr  string   `json:"stats_addr"`  // monitor-side mux address
	WindowSize int      `json:"window_size"` // sample collection window
	TickMS     int      `json:"tick_ms"`     // loop interval in milliseconds
	Arena      Rt.Arena `json:"arena"`       // scan geometry
}

// DefaultConfig is a complete single-host setup.
func DefaultConfig() ConfigFile {
	return ConfigFile{
		BridgeAddr: "192.168.1.4",
		LampName:   "Demo 1",
		SensorAddr: "localhost:5556",
		StatsAddr:  ":8090",
		WindowSize: 60,
		TickMS:     250,
	}
}

// TickRate converts the configured interval.
func (c ConfigFile) TickRate() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// LoadConfigFileName pulls a given filename config off local disk
// Validation is performed on the file before opening
func LoadConfigFileName(filename string) (ConfigFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return ConfigFile{}, err
	}
	defer file.Close()

	// validation
	if err := validateLoad(file); err != nil {
		slog.Error("Validation failed", slog.Any("Error", err))
		return ConfigFile{}, err
	}

	return LoadConfig(file)
}

func validateLoad(file *os.File) error {
	// validate file
	info, err := file.Stat()
	if err != nil {
		slog.Error("could not stat file")
		return err
	}

	// validate size
	if info.Size() == 0 {
		slog.Error("file is empty")
		return errors.New("file is empty")
	}

	return nil
}

// LoadConfig decodes the file over the compiled defaults.
func LoadConfig(file *os.File) (ConfigFile, error) {
	cf, err := os.Open(file.Name())
	if err != nil {
		slog.Error("could not open file")
		return ConfigFile{}, err
	}
	defer cf.Close()

	config := DefaultConfig()
	decoder := json.NewDecoder(cf)
	if err := decoder.Decode(&config); err != nil {
		slog.Error("could not decode file")
		return ConfigFile{}, err
	}

	return config, nil
}

// LoadRuntimeConfig resolves the effective configuration:
// compiled defaults, then the optional file named by
// RESPIRO_CONFIG, then individual env overrides.
func LoadRuntimeConfig() ConfigFile {
	config := DefaultConfig()

	if path := os.Getenv("RESPIRO_CONFIG"); path != "" {
		loaded, err := LoadConfigFileName(path)
		if err != nil {
			slog.Error("Could not load config file, using defaults",
				slog.String("path", path), slog.Any("Error", err))
		} else {
			config = loaded
		}
	}

	if v := os.Getenv("RESPIRO_BRIDGE_ADDR"); v != "" {
		config.BridgeAddr = v
	}
	if v := os.Getenv("RESPIRO_BRIDGE_USER"); v != "" {
		config.BridgeUser = v
	}
	if v := os.Getenv("RESPIRO_LAMP_NAME"); v != "" {
		config.LampName = v
	}
	if v := os.Getenv("RESPIRO_SENSOR_ADDR"); v != "" {
		config.SensorAddr = v
	}
	config.WindowSize = FillEnvVarInt("RESPIRO_WINDOW", config.WindowSize)
	config.TickMS = FillEnvVarInt("RESPIRO_TICK_MS", config.TickMS)

	return config
}
