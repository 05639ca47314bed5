package sensor

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/orientd/internal/fsutil"
	"github.com/banshee-data/orientd/internal/monitoring"
)

// DefaultIIORoot is where the kernel publishes industrial I/O devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

var accelAxes = []string{"x", "y", "z"}

// IIOBackend resolves accelerometers through the IIO sysfs interface.
type IIOBackend struct {
	Root string
	FS   fsutil.FileSystem
}

// NewIIOBackend returns a backend rooted at root on the real filesystem.
// An empty root selects DefaultIIORoot.
func NewIIOBackend(root string) *IIOBackend {
	if root == "" {
		root = DefaultIIORoot
	}
	return &IIOBackend{Root: root, FS: fsutil.OSFileSystem{}}
}

// OpenDevice finds the iio:deviceN whose name attribute equals name and
// enables every scan element it exposes. Only the accel axes are read.
func (b *IIOBackend) OpenDevice(name string) (Device, error) {
	dir, err := b.find(name)
	if err != nil {
		return nil, err
	}

	dev := &iioDevice{fs: b.FS, dir: dir, name: name}
	for _, axis := range accelAxes {
		if !b.FS.Exists(filepath.Join(dir, "in_accel_"+axis+"_raw")) {
			continue
		}
		dev.channels = append(dev.channels, iioChannel{
			raw:   filepath.Join(dir, "in_accel_"+axis+"_raw"),
			scale: b.scalePath(dir, axis),
		})
	}
	b.enableAll(dir)
	return dev, nil
}

func (b *IIOBackend) find(name string) (string, error) {
	entries, err := b.FS.ReadDir(b.Root)
	if err != nil {
		return "", fmt.Errorf("%w: %q: list %s: %v", ErrDeviceNotFound, name, b.Root, err)
	}
	want := strings.TrimSpace(name)
	for _, e := range entries {
		if !strings.HasPrefix(e, "iio:device") {
			continue
		}
		dir := filepath.Join(b.Root, e)
		got, err := fsutil.ReadAttr(b.FS, filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		if got == want {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// scalePath prefers the per-axis scale and falls back to the shared one.
// An empty path means the channel has no scale attribute.
func (b *IIOBackend) scalePath(dir, axis string) string {
	for _, p := range []string{
		filepath.Join(dir, "in_accel_"+axis+"_scale"),
		filepath.Join(dir, "in_accel_scale"),
	} {
		if b.FS.Exists(p) {
			return p
		}
	}
	return ""
}

// enableAll turns on every buffered scan element of the device. Drivers
// without scan elements report on demand and need nothing.
func (b *IIOBackend) enableAll(dir string) {
	scan := filepath.Join(dir, "scan_elements")
	names, err := b.FS.ReadDir(scan)
	if err != nil {
		return
	}
	for _, n := range names {
		if !strings.HasSuffix(n, "_en") {
			continue
		}
		p := filepath.Join(scan, n)
		if err := b.FS.WriteFile(p, []byte("1"), 0644); err != nil {
			monitoring.Logf("failed to enable channel %s: %v", p, err)
		}
	}
}

type iioChannel struct {
	raw   string
	scale string
}

type iioDevice struct {
	fs       fsutil.FileSystem
	dir      string
	name     string
	channels []iioChannel
}

func (d *iioDevice) Name() string  { return d.name + " (" + d.dir + ")" }
func (d *iioDevice) Channels() int { return len(d.channels) }
func (d *iioDevice) Close() error  { return nil }

func (d *iioDevice) ReadChannel(index int) (Reading, error) {
	if index < 0 || index >= len(d.channels) {
		return Reading{}, fmt.Errorf("channel %d out of range (have %d)", index, len(d.channels))
	}
	ch := d.channels[index]

	s, err := fsutil.ReadAttr(d.fs, ch.raw)
	if err != nil {
		return Reading{}, err
	}
	raw, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("parse %s: %w", ch.raw, err)
	}

	scale := 1.0
	if ch.scale != "" {
		s, err := fsutil.ReadAttr(d.fs, ch.scale)
		if err != nil {
			return Reading{}, err
		}
		scale, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return Reading{}, fmt.Errorf("parse %s: %w", ch.scale, err)
		}
	}
	return Reading{Raw: raw, Scale: scale}, nil
}
