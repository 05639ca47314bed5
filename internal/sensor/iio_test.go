package sensor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/orientd/internal/fsutil"
	"github.com/banshee-data/orientd/internal/orientation"
	"github.com/banshee-data/orientd/internal/testutil"
)

const root = "/sys/bus/iio/devices"

func sysfsTree() *fsutil.MemoryFileSystem {
	mfs := fsutil.NewMemoryFileSystem()

	// A light sensor that must be skipped.
	mfs.Set(root+"/iio:device0/name", "als\n")
	mfs.Set(root+"/iio:device0/in_illuminance_raw", "300\n")

	// Accelerometer with a shared scale and buffered scan elements.
	dev := root + "/iio:device1"
	mfs.Set(dev+"/name", "accel_3d\n")
	mfs.Set(dev+"/in_accel_x_raw", "-500\n")
	mfs.Set(dev+"/in_accel_y_raw", "800\n")
	mfs.Set(dev+"/in_accel_z_raw", "12\n")
	mfs.Set(dev+"/in_accel_scale", "0.010000\n")
	mfs.Set(dev+"/scan_elements/in_accel_x_en", "0\n")
	mfs.Set(dev+"/scan_elements/in_accel_y_en", "0\n")
	mfs.Set(dev+"/scan_elements/in_accel_z_en", "0\n")
	mfs.Set(dev+"/scan_elements/in_timestamp_en", "0\n")
	mfs.Set(dev+"/scan_elements/in_timestamp_type", "int64\n")

	mfs.Set(root+"/trigger0/name", "accel_3d-dev1\n")
	return mfs
}

func TestIIOOpenByName(t *testing.T) {
	t.Parallel()

	mfs := sysfsTree()
	b := &IIOBackend{Root: root, FS: mfs}

	dev, err := b.OpenDevice("accel_3d")
	require.NoError(t, err)
	assert.Equal(t, 3, dev.Channels())

	for _, el := range []string{"in_accel_x_en", "in_accel_y_en", "in_accel_z_en", "in_timestamp_en"} {
		v, err := fsutil.ReadAttr(mfs, root+"/iio:device1/scan_elements/"+el)
		require.NoError(t, err)
		assert.Equal(t, "1", v, "%s not enabled", el)
	}
	v, err := fsutil.ReadAttr(mfs, root+"/iio:device1/scan_elements/in_timestamp_type")
	require.NoError(t, err)
	assert.Equal(t, "int64", v)

	r, err := Open(b, "accel_3d", quietLogger())
	require.NoError(t, err)
	s, err := r.Sample()
	require.NoError(t, err)
	assert.InDelta(t, -5.0, s.X, 1e-9)
	assert.InDelta(t, 8.0, s.Y, 1e-9)
	assert.Equal(t, orientation.Inverted, orientation.Classify(s))
}

func TestIIODeviceNotFound(t *testing.T) {
	t.Parallel()

	b := &IIOBackend{Root: root, FS: sysfsTree()}

	_, err := b.OpenDevice("accel_3")
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	empty := &IIOBackend{Root: root, FS: fsutil.NewMemoryFileSystem()}
	_, err = empty.OpenDevice("accel_3d")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestIIONonAccelDeviceRejectedByReader(t *testing.T) {
	t.Parallel()

	b := &IIOBackend{Root: root, FS: sysfsTree()}

	_, err := Open(b, "als", quietLogger())
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestIIOPerAxisScaleAndMissingScanElements(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	dev := root + "/iio:device3"
	mfs.Set(dev+"/name", "lis3dh")
	mfs.Set(dev+"/in_accel_x_raw", "2")
	mfs.Set(dev+"/in_accel_y_raw", "3")
	mfs.Set(dev+"/in_accel_x_scale", "0.5")

	d, err := (&IIOBackend{Root: root, FS: mfs}).OpenDevice("lis3dh")
	require.NoError(t, err)
	require.Equal(t, 2, d.Channels())

	x, err := d.ReadChannel(0)
	require.NoError(t, err)
	assert.Equal(t, Reading{Raw: 2, Scale: 0.5}, x)

	y, err := d.ReadChannel(1)
	require.NoError(t, err)
	assert.Equal(t, Reading{Raw: 3, Scale: 1}, y)

	_, err = d.ReadChannel(2)
	assert.Error(t, err)
}

func TestIIOEnableFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	mfs := sysfsTree()
	mfs.SetReadOnly(root + "/iio:device1/scan_elements/in_accel_x_en")

	dev, err := (&IIOBackend{Root: root, FS: mfs}).OpenDevice("accel_3d")
	require.NoError(t, err)
	assert.Equal(t, 3, dev.Channels())
}

func TestIIOReadErrors(t *testing.T) {
	t.Parallel()

	mfs := sysfsTree()
	b := &IIOBackend{Root: root, FS: mfs}
	r, err := Open(b, "accel_3d", quietLogger())
	require.NoError(t, err)

	eio := errors.New("input/output error")
	mfs.FailReads(root+"/iio:device1/in_accel_y_raw", eio)
	_, err = r.Sample()
	var readErr *SampleReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, 1, readErr.Channel)
	assert.ErrorIs(t, err, eio)

	mfs.FailReads(root+"/iio:device1/in_accel_y_raw", nil)
	mfs.Set(root+"/iio:device1/in_accel_x_raw", "garbage")
	_, err = r.Sample()
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, 0, readErr.Channel)
}

func TestNewIIOBackendDefaultRoot(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultIIORoot, NewIIOBackend("").Root)
	assert.Equal(t, "/tmp/iio", NewIIOBackend("/tmp/iio").Root)
}

func TestIIOBackendOnDisk(t *testing.T) {
	t.Parallel()

	root := testutil.WriteSysfs(t,
		testutil.IIODevice{Name: "als", Attrs: map[string]string{"in_illuminance_raw": "300\n"}},
		testutil.Accel("accel_3d", 800, -300, "0.01"),
	)

	r, err := Open(NewIIOBackend(root), "accel_3d", nil)
	require.NoError(t, err)
	defer r.Close()

	s, err := r.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 8.0, s.X, 1e-9)
	assert.InDelta(t, -3.0, s.Y, 1e-9)
	assert.Equal(t, orientation.Left, orientation.Classify(s))

	en, err := os.ReadFile(filepath.Join(root, "iio:device1", "scan_elements", "in_accel_x_en"))
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(string(en)))

	_, err = Open(NewIIOBackend(root), "gyro_3d", nil)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}
