package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment helpers shared by the server and client configuration. An
// unset or unparseable variable yields the default.

func lookup[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := parse(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func GetEnvOrDefault(key, defaultValue string) string {
	return lookup(key, defaultValue, func(s string) (string, error) { return s, nil })
}

func GetIntOrDefault(key string, defaultValue int) int {
	return lookup(key, defaultValue, strconv.Atoi)
}

func GetFloatOrDefault(key string, defaultValue float64) float64 {
	return lookup(key, defaultValue, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func GetBoolOrDefault(key string, defaultValue bool) bool {
	return lookup(key, defaultValue, strconv.ParseBool)
}

func GetDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	return lookup(key, defaultValue, time.ParseDuration)
}

// GetStringSliceOrDefault splits on commas and drops blank entries.
func GetStringSliceOrDefault(key string, defaultValue []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
