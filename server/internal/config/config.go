package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/logista/realtime-bridge/pkg/token"
)

// Default values for the bridge configuration.
const (
	DefaultPort            = 4545
	DefaultHistoryLimit    = 50
	DefaultHeartbeat       = 30 * time.Second
	DefaultChannel         = "admin-logista"
	DefaultSendBuffer      = 64
	DefaultMaxMessageBytes = 64 * 1024
	DefaultSecretEnv       = token.DefaultSecretEnv
	DefaultLogLevel        = "info"
)

// Auth modes.
const (
	AuthNone = "none"
	AuthJWT  = "jwt"
)

// Config holds every bridge setting.
type Config struct {
	// Port is the TCP port the WebSocket, REST and metrics endpoints share.
	Port int `yaml:"port" env:"WS_PORT"`

	// HistoryLimit is the number of messages each room keeps for newcomers.
	HistoryLimit int `yaml:"history_limit" env:"WS_HISTORY_LIMIT"`

	// Heartbeat is the liveness sweep interval.
	Heartbeat Duration `yaml:"heartbeat" env:"WS_HEARTBEAT"`

	// DefaultChannel is used when a connection names no channel.
	DefaultChannel string `yaml:"default_channel" env:"WS_DEFAULT_CHANNEL"`

	// RoomIdleTTL evicts rooms that have been empty this long. Zero keeps
	// every room for the life of the process.
	RoomIdleTTL Duration `yaml:"room_idle_ttl" env:"WS_ROOM_IDLE_TTL"`

	// SendBuffer is the per-session outbound queue depth. Frames beyond it
	// are dropped for that session.
	SendBuffer int `yaml:"send_buffer" env:"WS_SEND_BUFFER"`

	// MaxMessageBytes is the largest inbound frame accepted; larger frames
	// close the connection.
	MaxMessageBytes int64 `yaml:"max_message_bytes" env:"WS_MAX_MESSAGE_BYTES"`

	// MaxMessageRate caps inbound frames per second per session. Zero
	// disables the limit.
	MaxMessageRate float64 `yaml:"max_message_rate" env:"WS_MAX_MESSAGE_RATE"`

	// Auth selects how connection identity is established.
	Auth AuthConfig `yaml:"auth"`

	// LogLevel is one of debug | info | warn | error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// AuthConfig controls identity resolution at admission.
type AuthConfig struct {
	// Mode is one of: none | jwt.
	Mode string `yaml:"mode" env:"WS_AUTH_MODE"`

	// SecretEnv names the environment variable holding the HS256 secret.
	SecretEnv string `yaml:"secret_env" env:"WS_AUTH_SECRET_ENV"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer" env:"WS_AUTH_ISSUER"`
}

// Secret returns the token signing secret resolved from the environment.
func (a AuthConfig) Secret() string {
	if a.SecretEnv == "" {
		return ""
	}
	return os.Getenv(a.SecretEnv)
}

// Duration is a time.Duration that also accepts bare integers as milliseconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText implements encoding.TextUnmarshaler (used for env values).
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := parseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", n.Line)
	}
	return d.UnmarshalText([]byte(n.Value))
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: want milliseconds or a Go duration", s)
	}
	return v, nil
}

// LoadDotenv merges the given .env files (default ".env") into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Port:            DefaultPort,
		HistoryLimit:    DefaultHistoryLimit,
		Heartbeat:       Duration(DefaultHeartbeat),
		DefaultChannel:  DefaultChannel,
		SendBuffer:      DefaultSendBuffer,
		MaxMessageBytes: DefaultMaxMessageBytes,
		Auth: AuthConfig{
			Mode:      AuthNone,
			SecretEnv: DefaultSecretEnv,
		},
		LogLevel: DefaultLogLevel,
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range [1, 65535]", cfg.Port)
	}
	if cfg.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", cfg.HistoryLimit)
	}
	if cfg.Heartbeat <= 0 {
		return fmt.Errorf("heartbeat must be positive")
	}
	if cfg.DefaultChannel == "" {
		return fmt.Errorf("default_channel is required")
	}
	if cfg.RoomIdleTTL < 0 {
		return fmt.Errorf("room_idle_ttl must not be negative")
	}
	if cfg.SendBuffer < 1 {
		return fmt.Errorf("send_buffer must be at least 1, got %d", cfg.SendBuffer)
	}
	if cfg.MaxMessageBytes < 1 {
		return fmt.Errorf("max_message_bytes must be positive")
	}
	if cfg.MaxMessageRate < 0 {
		return fmt.Errorf("max_message_rate must not be negative")
	}
	switch cfg.Auth.Mode {
	case AuthNone, "":
	case AuthJWT:
		if cfg.Auth.Secret() == "" {
			return fmt.Errorf("auth.mode jwt requires a secret in $%s", cfg.Auth.SecretEnv)
		}
	default:
		return fmt.Errorf("auth.mode %q unknown: want none|jwt", cfg.Auth.Mode)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log_level string to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level %q unknown: want debug|info|warn|error", s)
}

// LogValue implements slog.LogValuer. Secrets are never included.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("port", c.Port),
		slog.Int("history_limit", c.HistoryLimit),
		slog.Duration("heartbeat", c.Heartbeat.Std()),
		slog.String("default_channel", c.DefaultChannel),
		slog.Duration("room_idle_ttl", c.RoomIdleTTL.Std()),
		slog.Int("send_buffer", c.SendBuffer),
		slog.Int64("max_message_bytes", c.MaxMessageBytes),
		slog.Float64("max_message_rate", c.MaxMessageRate),
		slog.String("auth_mode", c.Auth.Mode),
		slog.String("log_level", c.LogLevel),
	)
}
