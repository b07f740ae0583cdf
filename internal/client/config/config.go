// Package config loads the desk client configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"

	serverconfig "github.com/qaiserfcc/helpDesk-sub001/internal/config"
)

// Config holds everything a desk client needs to talk to the service and
// keep its local state.
type Config struct {
	APIURL string
	WSURL  string

	// DataPath is the SQLite file holding the session and the offline queue.
	DataPath string

	RequestTimeout  time.Duration
	SyncInterval    time.Duration
	RefreshInterval time.Duration
	HealthInterval  time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and the environment, then validates.
func Load() (*Config, error) {
	if !LoadDotEnv() {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env into the environment if the file exists and
// reports whether it did.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// FromEnv reads the configuration without validating it. WSURL defaults to
// the websocket endpoint derived from APIURL.
func FromEnv() *Config {
	apiURL := strings.TrimRight(serverconfig.GetEnvOrDefault("DESK_API_URL", "http://localhost:8080"), "/")

	return &Config{
		APIURL:          apiURL,
		WSURL:           serverconfig.GetEnvOrDefault("DESK_WS_URL", DeriveWSURL(apiURL)),
		DataPath:        serverconfig.GetEnvOrDefault("DESK_DATA_PATH", "desk.db"),
		RequestTimeout:  serverconfig.GetDurationOrDefault("DESK_REQUEST_TIMEOUT", 15*time.Second),
		SyncInterval:    serverconfig.GetDurationOrDefault("DESK_SYNC_INTERVAL", 30*time.Second),
		RefreshInterval: serverconfig.GetDurationOrDefault("DESK_REFRESH_INTERVAL", 10*time.Minute),
		HealthInterval:  serverconfig.GetDurationOrDefault("DESK_HEALTH_INTERVAL", 10*time.Second),
		LogLevel:        serverconfig.GetEnvOrDefault("DESK_LOG_LEVEL", "warn"),
		LogFormat:       serverconfig.GetEnvOrDefault("DESK_LOG_FORMAT", "text"),
	}
}

// DeriveWSURL maps http(s)://host to ws(s)://host/api/v1/ws.
func DeriveWSURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/ws"
	return u.String()
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		errs = append(errs, "DESK_API_URL must be an absolute URL")
	}
	if u, err := url.Parse(c.WSURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, "DESK_WS_URL must use ws or wss")
	}
	if c.DataPath == "" {
		errs = append(errs, "DESK_DATA_PATH is required")
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, "DESK_SYNC_INTERVAL must be positive")
	}
	if c.HealthInterval <= 0 {
		errs = append(errs, "DESK_HEALTH_INTERVAL must be positive")
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, "DESK_REFRESH_INTERVAL must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("client configuration errors: %w", errors.New(strings.Join(errs, "; ")))
	}
	return nil
}
