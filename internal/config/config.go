package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	WebSocket WebSocketConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	App       AppConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

type DatabaseConfig struct {
	URL             string
	MigrationsPath  string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// JWTConfig signs access and refresh credentials with independent secrets.
type JWTConfig struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	AuthRPS           float64
	AuthBurst         int
}

type WebSocketConfig struct {
	AllowedOrigins   []string
	ReadBufferSize   int
	WriteBufferSize  int
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	HandshakeTimeout time.Duration
	SendBuffer       int
	PublishBuffer    int
	MaxMessageSize   int64
}

// RedisConfig is optional. When enabled it backs the refresh-token ledger
// and the cross-instance event relay.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Load reads an optional .env file, then the environment, and validates
// the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the configuration from the current environment without
// validating it.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            GetEnvOrDefault("SERVER_PORT", ":8080"),
			ReadTimeout:     GetDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    GetDurationOrDefault("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     GetDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: GetDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSOrigins:     GetStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MigrationsPath:  GetEnvOrDefault("DB_MIGRATIONS_PATH", "file://migrations"),
			MaxConns:        GetIntOrDefault("DB_MAX_CONNS", 25),
			MinConns:        GetIntOrDefault("DB_MIN_CONNS", 2),
			ConnMaxLifetime: GetDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: GetDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		JWT: JWTConfig{
			AccessSecret:    os.Getenv("JWT_ACCESS_SECRET"),
			RefreshSecret:   os.Getenv("JWT_REFRESH_SECRET"),
			AccessTokenTTL:  GetDurationOrDefault("JWT_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: GetDurationOrDefault("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           GetBoolOrDefault("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: GetFloatOrDefault("RATE_LIMIT_RPS", 10),
			BurstSize:         GetIntOrDefault("RATE_LIMIT_BURST", 20),
			AuthRPS:           GetFloatOrDefault("RATE_LIMIT_AUTH_RPS", 1),
			AuthBurst:         GetIntOrDefault("RATE_LIMIT_AUTH_BURST", 5),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:   GetStringSliceOrDefault("WS_ALLOWED_ORIGINS", []string{}),
			ReadBufferSize:   GetIntOrDefault("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize:  GetIntOrDefault("WS_WRITE_BUFFER_SIZE", 1024),
			PingInterval:     GetDurationOrDefault("WS_PING_INTERVAL", 54*time.Second),
			PongWait:         GetDurationOrDefault("WS_PONG_WAIT", 60*time.Second),
			WriteWait:        GetDurationOrDefault("WS_WRITE_WAIT", 10*time.Second),
			HandshakeTimeout: GetDurationOrDefault("WS_HANDSHAKE_TIMEOUT", 5*time.Second),
			SendBuffer:       GetIntOrDefault("WS_SEND_BUFFER", 256),
			PublishBuffer:    GetIntOrDefault("WS_PUBLISH_BUFFER", 1024),
			MaxMessageSize:   int64(GetIntOrDefault("WS_MAX_MESSAGE_SIZE", 4096)),
		},
		Redis: RedisConfig{
			Enabled:  GetBoolOrDefault("REDIS_ENABLED", false),
			Addr:     GetEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       GetIntOrDefault("REDIS_DB", 0),
			Channel:  GetEnvOrDefault("REDIS_EVENT_CHANNEL", "servicedesk:events"),
		},
		Logging: LoggingConfig{
			Level:  GetEnvOrDefault("LOG_LEVEL", "info"),
			Format: GetEnvOrDefault("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        GetEnvOrDefault("APP_NAME", "service-desk"),
			Version:     GetEnvOrDefault("APP_VERSION", "dev"),
			Environment: GetEnvOrDefault("APP_ENV", "development"),
		},
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	production := c.IsProduction()
	checks := []struct {
		failed  bool
		message string
	}{
		{c.Database.URL == "", "DATABASE_URL is required"},
		{c.JWT.AccessSecret == "", "JWT_ACCESS_SECRET is required"},
		{c.JWT.RefreshSecret == "", "JWT_REFRESH_SECRET is required"},
		{c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"},
		{c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= 0, "JWT token TTLs must be positive"},
		{c.JWT.AccessTokenTTL > 0 && c.JWT.AccessTokenTTL >= c.JWT.RefreshTokenTTL, "JWT_ACCESS_TOKEN_TTL must be shorter than JWT_REFRESH_TOKEN_TTL"},
		{production && (len(c.JWT.AccessSecret) < 32 || len(c.JWT.RefreshSecret) < 32), "JWT secrets must be at least 32 characters in production"},
		{production && len(c.WebSocket.AllowedOrigins) == 0, "WS_ALLOWED_ORIGINS must be set in production"},
		{c.Database.MinConns > c.Database.MaxConns, "DB_MIN_CONNS cannot exceed DB_MAX_CONNS"},
		{c.WebSocket.PingInterval >= c.WebSocket.PongWait, "WS_PING_INTERVAL must be shorter than WS_PONG_WAIT"},
		{c.WebSocket.SendBuffer <= 0 || c.WebSocket.PublishBuffer <= 0, "WS_SEND_BUFFER and WS_PUBLISH_BUFFER must be positive"},
		{c.Redis.Enabled && c.Redis.Addr == "", "REDIS_ADDR is required when REDIS_ENABLED is set"},
	}

	var problems []string
	for _, check := range checks {
		if check.failed {
			problems = append(problems, check.message)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// String is safe to log: secrets are omitted and the database password is
// masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{env=%s port=%s db=%s redis=%t rate_limit=%t}",
		c.App.Environment,
		c.Server.Port,
		redactedDatabaseURL(c.Database.URL),
		c.Redis.Enabled,
		c.RateLimit.Enabled,
	)
}

func redactedDatabaseURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable]"
	}
	return u.Redacted()
}
