package main

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/orientd/internal/config"
	"github.com/banshee-data/orientd/internal/display"
	"github.com/banshee-data/orientd/internal/history"
	"github.com/banshee-data/orientd/internal/orientation"
	"github.com/banshee-data/orientd/internal/sensor"
	"github.com/banshee-data/orientd/internal/testutil"
)

// cancellingDriver records effects and cancels the run once the input
// transform for want has been applied.
type cancellingDriver struct {
	display.RecordingDriver
	want   orientation.Matrix
	cancel context.CancelFunc
	once   sync.Once
}

func (d *cancellingDriver) SetInputTransform(ctx context.Context, id string, m orientation.Matrix) error {
	err := d.RecordingDriver.SetInputTransform(ctx, id, m)
	if m == d.want {
		d.once.Do(d.cancel)
	}
	return err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AccelDevice:    "accel_3d",
		TouchscreenID:  "11",
		PollInterval:   time.Millisecond,
		CommandTimeout: time.Second,
		SensorBackend:  config.BackendIIO,
	}
}

func TestRunMissingDeviceFailsBeforeSampling(t *testing.T) {
	t.Parallel()

	log, _ := test.NewNullLogger()
	backend := sensor.NewFakeBackend()
	drv := &display.RecordingDriver{}

	err := run(context.Background(), testConfig(t), backend, drv, log)
	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrDeviceNotFound)
	assert.Empty(t, drv.Calls())
}

func TestRunAppliesUntilCancelled(t *testing.T) {
	t.Parallel()

	backend := sensor.NewFakeBackend()
	dev := backend.Add("accel_3d",
		sensor.Frame{X: 0, Y: -9},  // normal
		sensor.Frame{X: 0, Y: -8},  // normal
		sensor.Frame{X: 20, Y: 20}, // unknown
		sensor.Frame{X: 8, Y: -3},  // left
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	left, _ := orientation.Transform(orientation.Left)
	drv := &cancellingDriver{want: left, cancel: cancel}

	cfg := testConfig(t)
	cfg.HistoryDB = filepath.Join(t.TempDir(), "history.db")

	log, hook := test.NewNullLogger()
	require.NoError(t, run(ctx, cfg, backend, drv, log))

	assert.Equal(t, []orientation.Orientation{orientation.Normal, orientation.Left}, drv.Rotations())
	assert.True(t, dev.Closed())
	assert.Equal(t, "orientd stopped", hook.LastEntry().Message)

	var warned int
	for _, e := range hook.AllEntries() {
		if e.Message == "orientation regions overlap; the earlier rule wins" {
			warned++
		}
	}
	assert.Equal(t, 3, warned)

	store, err := history.Open(cfg.HistoryDB, log)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, orientation.Left, entries[0].Orientation)
	assert.Equal(t, orientation.Normal, entries[0].Previous)
}

func TestRunWithAdminAndHealth(t *testing.T) {
	t.Parallel()

	backend := sensor.NewFakeBackend()
	backend.Add("accel_3d", sensor.Frame{X: -5, Y: 0}) // right

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	right, _ := orientation.Transform(orientation.Right)
	drv := &cancellingDriver{want: right, cancel: cancel}

	cfg := testConfig(t)
	cfg.AdminListen = "127.0.0.1:0"
	cfg.HealthListen = "127.0.0.1:0"

	log, _ := test.NewNullLogger()
	require.NoError(t, run(ctx, cfg, backend, drv, log))
	assert.Equal(t, []orientation.Orientation{orientation.Right}, drv.Rotations())
}

func TestRootCommandRequiresConfig(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.Error(t, cmd.Execute())
}

func TestRootCommandRejectsBadConfig(t *testing.T) {
	path := testutil.WriteConfig(t, "orientd.json", `{"touchscreen_id": "11"}`)

	cmd := newRootCommand()
	cmd.SetArgs([]string{"-c", path, "-l", filepath.Join(t.TempDir(), "orientd.log")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRootCommandHasNoVersionFlag(t *testing.T) {
	cmd := newRootCommand()
	assert.Nil(t, cmd.Flags().Lookup("version"))

	cmd.SetArgs([]string{"--version"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.ErrorContains(t, cmd.Execute(), "unknown flag")
}
