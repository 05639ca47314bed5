// Package sensor reads calibrated 2-axis acceleration samples from a named
// hardware device.
package sensor

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/banshee-data/orientd/internal/orientation"
)

// ErrDeviceNotFound is returned when a device name resolves to no device.
var ErrDeviceNotFound = errors.New("sensor device not found")

// SampleReadError reports a failed channel read during a single sample.
type SampleReadError struct {
	Channel int
	Err     error
}

func (e *SampleReadError) Error() string {
	return fmt.Sprintf("read channel %d: %v", e.Channel, e.Err)
}

func (e *SampleReadError) Unwrap() error { return e.Err }

// Reading is the raw integer value and scale factor of one channel.
type Reading struct {
	Raw   int64
	Scale float64
}

// Value returns the calibrated channel value.
func (r Reading) Value() float64 {
	return float64(r.Raw) * r.Scale
}

// Backend locates devices by name in a hardware context.
type Backend interface {
	// OpenDevice resolves name to a device and enables all of its channels.
	// It returns an error wrapping ErrDeviceNotFound when nothing matches.
	OpenDevice(name string) (Device, error)
}

// Device is an opened sensor exposing indexed channels.
type Device interface {
	Name() string
	Channels() int
	ReadChannel(index int) (Reading, error)
	Close() error
}

// Reader produces one sample per call from the first two channels of a
// device.
type Reader struct {
	dev Device
	log logrus.FieldLogger
}

// Open resolves and opens the named device through the backend.
func Open(b Backend, name string, log logrus.FieldLogger) (*Reader, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty device name", ErrDeviceNotFound)
	}
	dev, err := b.OpenDevice(name)
	if err != nil {
		return nil, err
	}
	if n := dev.Channels(); n < 2 {
		dev.Close()
		return nil, fmt.Errorf("%w: %q exposes %d channel(s), need 2", ErrDeviceNotFound, name, n)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{"device": dev.Name(), "channels": dev.Channels()}).Info("opened accelerometer")
	return &Reader{dev: dev, log: log}, nil
}

// Sample reads channels 0 and 1 and returns raw*scale for each. A failed
// read is returned as a *SampleReadError and never retried.
func (r *Reader) Sample() (orientation.Sample, error) {
	x, err := r.dev.ReadChannel(0)
	if err != nil {
		return orientation.Sample{}, &SampleReadError{Channel: 0, Err: err}
	}
	y, err := r.dev.ReadChannel(1)
	if err != nil {
		return orientation.Sample{}, &SampleReadError{Channel: 1, Err: err}
	}
	s := orientation.Sample{X: x.Value(), Y: y.Value()}
	r.log.WithFields(logrus.Fields{"x": s.X, "y": s.Y}).Debug("sample")
	return s, nil
}

// Device returns the underlying device.
func (r *Reader) Device() Device { return r.dev }

// Close releases the device.
func (r *Reader) Close() error {
	return r.dev.Close()
}
