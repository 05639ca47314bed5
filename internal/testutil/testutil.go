// Package testutil builds on-disk fixtures for tests: config files and
// fake sysfs IIO trees.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes body to dir/name, creating parent directories, and
// returns the full path.
func WriteFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteConfig writes a config file named name into a fresh temp dir.
func WriteConfig(t *testing.T, name, body string) string {
	t.Helper()
	return WriteFile(t, t.TempDir(), name, body)
}

// IIODevice describes one iio:deviceN directory. Attrs maps file names
// relative to the device directory to their contents.
type IIODevice struct {
	Name  string
	Attrs map[string]string
}

// Accel returns an accelerometer device with x/y/z raw values, a shared
// scale and disabled scan elements.
func Accel(name string, x, y int64, scale string) IIODevice {
	return IIODevice{
		Name: name,
		Attrs: map[string]string{
			"in_accel_x_raw":              fmt.Sprintf("%d\n", x),
			"in_accel_y_raw":              fmt.Sprintf("%d\n", y),
			"in_accel_z_raw":              "0\n",
			"in_accel_scale":              scale + "\n",
			"scan_elements/in_accel_x_en": "0\n",
			"scan_elements/in_accel_y_en": "0\n",
			"scan_elements/in_accel_z_en": "0\n",
		},
	}
}

// WriteSysfs lays out devices as iio:device0..N under a temp dir and
// returns that root.
func WriteSysfs(t *testing.T, devices ...IIODevice) string {
	t.Helper()
	root := t.TempDir()
	for i, d := range devices {
		dir := filepath.Join(root, fmt.Sprintf("iio:device%d", i))
		WriteFile(t, dir, "name", d.Name+"\n")
		for name, body := range d.Attrs {
			WriteFile(t, dir, name, body)
		}
	}
	return root
}
