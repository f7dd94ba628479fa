package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashwingupta21/VR-API/errors"
)

// Duration wraps time.Duration so JSON configs can say "5s" instead of
// nanosecond integers. Bare numbers are still accepted as nanoseconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(v))
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SerialConfig holds device acquisition settings.
type SerialConfig struct {
	// Device pins the serial device path, bypassing resolution. Empty
	// means resolve by USB marker.
	Device string `json:"device,omitempty"`

	BaudRate    int      `json:"baud_rate,omitempty"`
	ReadTimeout Duration `json:"read_timeout,omitempty"`

	// Markers override the USB description substrings used to pick a
	// port during resolution.
	Markers []string `json:"markers,omitempty"`

	// Threshold is the sample value above which an event is active.
	Threshold int `json:"threshold,omitempty"`

	ConnectBackoff Duration `json:"connect_backoff,omitempty"`
	NoPortBackoff  Duration `json:"no_port_backoff,omitempty"`
	RetryThreshold int      `json:"retry_threshold,omitempty"`

	// Reclaim enables terminating processes that hold the serial port
	// busy. Disabled configs fail busy ports instead.
	Reclaim bool `json:"reclaim,omitempty"`
}

// ServerConfig holds the WebSocket server settings.
type ServerConfig struct {
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`
	Path string `json:"path,omitempty"`
}

// NATSConfig holds the optional event mirror settings.
type NATSConfig struct {
	URL     string `json:"url,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// AdminConfig holds the operational HTTP endpoint settings. Port zero
// disables the admin server entirely.
type AdminConfig struct {
	Port int `json:"port,omitempty"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// SlogLevel maps the configured level name to a slog.Level. The level
// list lives in Validate; anything that slips past it logs at info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the complete bridge configuration.
type Config struct {
	Serial  SerialConfig  `json:"serial"`
	Server  ServerConfig  `json:"server"`
	NATS    NATSConfig    `json:"nats"`
	Admin   AdminConfig   `json:"admin"`
	Logging LoggingConfig `json:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate:       115200,
			ReadTimeout:    Duration(time.Second),
			Threshold:      100,
			ConnectBackoff: Duration(5 * time.Second),
			NoPortBackoff:  Duration(time.Second),
			RetryThreshold: 3,
			Reclaim:        true,
		},
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8000,
			Path: "/ws",
		},
		NATS: NATSConfig{
			Subject: "emg.events",
		},
		Admin: AdminConfig{
			Port: 9090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Loader loads configuration from defaults, an optional file and
// environment overrides.
type Loader struct {
	envPrefix string
}

// NewLoader creates a loader with the standard VRAPI env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "VRAPI"}
}

// Load builds the configuration. An empty path skips the file layer; a
// named file that does not exist is an error.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("read config file %s", path))
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("parse config file %s", path))
		}
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies VRAPI_* environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_SERIAL_DEVICE"); val != "" {
		cfg.Serial.Device = val
	}
	if val := os.Getenv(l.envPrefix + "_SERIAL_BAUD_RATE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Serial.BaudRate = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_SERIAL_THRESHOLD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Serial.Threshold = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_SERIAL_MARKERS"); val != "" {
		markers := strings.Split(val, ",")
		for i := range markers {
			markers[i] = strings.TrimSpace(markers[i])
		}
		cfg.Serial.Markers = markers
	}
	if val := os.Getenv(l.envPrefix + "_SERVER_BIND"); val != "" {
		cfg.Server.Bind = val
	}
	if val := os.Getenv(l.envPrefix + "_SERVER_PORT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_SERVER_PATH"); val != "" {
		cfg.Server.Path = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_SUBJECT"); val != "" {
		cfg.NATS.Subject = val
	}
	if val := os.Getenv(l.envPrefix + "_ADMIN_PORT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Admin.Port = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Serial.BaudRate <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("baud rate must be positive, got %d", c.Serial.BaudRate))
	}
	if c.Serial.ReadTimeout.Std() <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "read timeout must be positive")
	}
	// Zero is reserved for "unset" in the decoder, so it cannot be a
	// configured threshold.
	if c.Serial.Threshold <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("threshold must be positive, got %d", c.Serial.Threshold))
	}
	if c.Serial.RetryThreshold <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("retry threshold must be positive, got %d", c.Serial.RetryThreshold))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("server port %d out of range", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("server path %q must start with /", c.Server.Path))
	}
	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("admin port %d out of range", c.Admin.Port))
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"nats subject cannot be empty when a url is set")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}
	return nil
}
