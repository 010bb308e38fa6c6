package respiro

import (
	"log/slog"
	"os"
	"strconv"
)

// FillEnvVar returns the value of a runtime Environment Variable
func FillEnvVar(ev string) string {
	// If the EnvVar doesn't exist return a default string
	value := os.Getenv(ev)
	if value == "" {
		value = "ENOENT"
	}
	return value
}

// FillEnvVarInt returns an integer Environment Variable,
// falling back to def when unset or unparsable.
func FillEnvVarInt(ev string, def int) int {
	value := os.Getenv(ev)
	if value == "" {
		return def
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		slog.Error("Could not parse env var as int, using default",
			slog.String("var", ev), slog.Any("Error", err))
		return def
	}
	return i
}

// FillEnvVarBool is true only for an explicit "true" or "1".
func FillEnvVarBool(ev string) bool {
	value := os.Getenv(ev)
	return value == "true" || value == "1"
}
