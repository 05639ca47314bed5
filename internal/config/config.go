// Package config loads the daemon's JSON configuration through viper, with
// ORIENTD_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/banshee-data/orientd/internal/sensor"
)

// EnvPrefix prefixes environment overrides, e.g. ORIENTD_ACCEL.
const EnvPrefix = "orientd"

// Sensor backends.
const (
	BackendIIO    = "iio"
	BackendSerial = "serial"
)

// ErrInvalidConfig wraps every configuration load or validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config identifies the sensor and the input device to transform, plus the
// optional daemon surfaces. It is loaded once and never mutated.
type Config struct {
	AccelDevice   string `mapstructure:"accel"`
	TouchscreenID string `mapstructure:"touchscreen_id"`
	TouchpadID    string `mapstructure:"touchpad_id"`

	PollInterval   time.Duration `mapstructure:"poll_interval"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`

	SensorBackend string               `mapstructure:"sensor_backend"`
	IIORoot       string               `mapstructure:"iio_root"`
	Serial        sensor.SerialOptions `mapstructure:"serial"`

	DisplayOutput string `mapstructure:"display_output"`

	HistoryDB    string `mapstructure:"history_db"`
	AdminListen  string `mapstructure:"admin_listen"`
	HealthListen string `mapstructure:"health_listen"`
}

var defaults = map[string]any{
	"accel":            "",
	"touchscreen_id":   "",
	"touchpad_id":      "",
	"poll_interval":    "1s",
	"command_timeout":  "5s",
	"sensor_backend":   BackendIIO,
	"iio_root":         sensor.DefaultIIORoot,
	"serial.baud_rate": 0,
	"serial.data_bits": 0,
	"serial.stop_bits": 0,
	"serial.parity":    "",
	"serial.scale":     0.0,
	"display_output":   "",
	"history_db":       "",
	"admin_listen":     "",
	"health_listen":    "",
}

// Load reads a JSON config file. Unknown fields are ignored; missing
// required fields fail with ErrInvalidConfig.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if path == "" {
		return nil, fmt.Errorf("%w: no config file given", ErrInvalidConfig)
	}
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("%w: config file must have .json extension, got %q", ErrInvalidConfig, ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat config file: %v", ErrInvalidConfig, err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrInvalidConfig, fileInfo.Size(), maxFileSize)
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetConfigFile(cleanPath)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read config: %v", ErrInvalidConfig, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode config: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and option ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AccelDevice) == "" {
		return fmt.Errorf("%w: accel is required", ErrInvalidConfig)
	}
	if c.InputDeviceID() == "" {
		return fmt.Errorf("%w: touchscreen_id or touchpad_id is required", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive, got %s", ErrInvalidConfig, c.PollInterval)
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("%w: command_timeout must not be negative, got %s", ErrInvalidConfig, c.CommandTimeout)
	}

	switch c.SensorBackend {
	case BackendIIO:
	case BackendSerial:
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("%w: serial: %v", ErrInvalidConfig, err)
		}
	default:
		return fmt.Errorf("%w: unsupported sensor_backend %q", ErrInvalidConfig, c.SensorBackend)
	}
	return nil
}

// InputDeviceID returns the input device to transform. touchscreen_id wins
// when both identifiers are set.
func (c *Config) InputDeviceID() string {
	if id := strings.TrimSpace(c.TouchscreenID); id != "" {
		return id
	}
	return strings.TrimSpace(c.TouchpadID)
}

// Backend builds the sensor backend selected by the config.
func (c *Config) Backend() sensor.Backend {
	if c.SensorBackend == BackendSerial {
		return sensor.NewSerialBackend(c.Serial)
	}
	return sensor.NewIIOBackend(c.IIORoot)
}
