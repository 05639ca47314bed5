package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/orientd/internal/sensor"
	"github.com/banshee-data/orientd/internal/testutil"
)

func TestLoadMinimalConfig(t *testing.T) {
	path := testutil.WriteConfig(t, "orientd.json", `{
  "accel": "accel_3d",
  "touchscreen_id": "11",
  "comment": "extra fields are ignored"
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "accel_3d", cfg.AccelDevice)
	assert.Equal(t, "11", cfg.InputDeviceID())
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
	assert.Equal(t, BackendIIO, cfg.SensorBackend)
	assert.Equal(t, sensor.DefaultIIORoot, cfg.IIORoot)
	assert.Empty(t, cfg.HistoryDB)
	assert.Empty(t, cfg.AdminListen)
	assert.Empty(t, cfg.HealthListen)

	_, isIIO := cfg.Backend().(*sensor.IIOBackend)
	assert.True(t, isIIO)
}

func TestLoadTouchpadDeployment(t *testing.T) {
	path := testutil.WriteConfig(t, "orientd.json", `{"accel": "accel_3d", "touchpad_id": "SYNA3602:00 0911:5288 Touchpad"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SYNA3602:00 0911:5288 Touchpad", cfg.InputDeviceID())
}

func TestInputDeviceIDPrefersTouchscreen(t *testing.T) {
	cfg := Config{TouchscreenID: "11", TouchpadID: "12"}
	assert.Equal(t, "11", cfg.InputDeviceID())

	cfg = Config{TouchscreenID: "  ", TouchpadID: "12"}
	assert.Equal(t, "12", cfg.InputDeviceID())
}

func TestLoadFullConfig(t *testing.T) {
	path := testutil.WriteConfig(t, "orientd.json", `{
  "accel": "/dev/ttyACM0",
  "touchscreen_id": "ELAN Touchscreen",
  "poll_interval": "250ms",
  "command_timeout": "0s",
  "sensor_backend": "serial",
  "serial": {"baud_rate": 9600, "parity": "E", "scale": 0.0039},
  "display_output": "DSI-1",
  "history_db": "/var/lib/orientd/history.db",
  "admin_listen": "127.0.0.1:8081",
  "health_listen": "127.0.0.1:8082"
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Zero(t, cfg.CommandTimeout)
	assert.Equal(t, BackendSerial, cfg.SensorBackend)
	assert.Equal(t, sensor.SerialOptions{BaudRate: 9600, Parity: "E", Scale: 0.0039}, cfg.Serial)
	assert.Equal(t, "DSI-1", cfg.DisplayOutput)
	assert.Equal(t, "/var/lib/orientd/history.db", cfg.HistoryDB)
	assert.Equal(t, "127.0.0.1:8081", cfg.AdminListen)
	assert.Equal(t, "127.0.0.1:8082", cfg.HealthListen)

	_, isSerial := cfg.Backend().(*sensor.SerialBackend)
	assert.True(t, isSerial)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := testutil.WriteConfig(t, "orientd.json", `{"accel": "accel_3d", "touchscreen_id": "11"}`)
	t.Setenv("ORIENTD_ACCEL", "cros-ec-accel")
	t.Setenv("ORIENTD_POLL_INTERVAL", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cros-ec-accel", cfg.AccelDevice)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"missing accel", "c.json", `{"touchscreen_id": "11"}`, "accel is required"},
		{"missing input device", "c.json", `{"accel": "accel_3d"}`, "touchscreen_id or touchpad_id"},
		{"malformed json", "c.json", `{"accel": "accel_3d",`, "failed to read config"},
		{"wrong extension", "c.yaml", `accel: accel_3d`, ".json extension"},
		{"zero interval", "c.json", `{"accel": "a", "touchscreen_id": "1", "poll_interval": "0s"}`, "poll_interval"},
		{"negative timeout", "c.json", `{"accel": "a", "touchscreen_id": "1", "command_timeout": "-1s"}`, "command_timeout"},
		{"bad backend", "c.json", `{"accel": "a", "touchscreen_id": "1", "sensor_backend": "i2c"}`, "sensor_backend"},
		{"bad serial", "c.json", `{"accel": "a", "touchscreen_id": "1", "sensor_backend": "serial", "serial": {"parity": "X"}}`, "parity"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(testutil.WriteConfig(t, tc.file, tc.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/orientd.json")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadOversizedFile(t *testing.T) {
	body := `{"accel": "a", "touchscreen_id": "1", "pad": "` + strings.Repeat("x", 1024*1024) + `"}`
	_, err := Load(testutil.WriteConfig(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
