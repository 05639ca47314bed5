package sensor

import (
	"fmt"
	"io"
	"sync"
)

// Frame is one scripted sample for a FakeDevice. A non-nil Err makes the
// read of that frame fail.
type Frame struct {
	X, Y  int64
	Scale float64
	Err   error
}

// FakeBackend is a deterministic in-memory hardware context.
type FakeBackend struct {
	mu      sync.Mutex
	devices map[string]*FakeDevice
	opens   int
}

// NewFakeBackend creates an empty fake context.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{devices: make(map[string]*FakeDevice)}
}

// Add registers a device with the given scripted frames.
func (b *FakeBackend) Add(name string, frames ...Frame) *FakeDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := &FakeDevice{name: name, frames: frames, channels: 2}
	b.devices[name] = d
	return d
}

// Opens returns how many OpenDevice calls succeeded.
func (b *FakeBackend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// OpenDevice returns the registered device and marks its channels enabled.
func (b *FakeBackend) OpenDevice(name string) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
	}
	d.mu.Lock()
	d.enabled = true
	d.closed = false
	d.mu.Unlock()
	b.opens++
	return d, nil
}

// FakeDevice replays frames in order; reading past the end returns io.EOF.
type FakeDevice struct {
	mu       sync.Mutex
	name     string
	frames   []Frame
	pos      int
	current  *Frame
	channels int
	enabled  bool
	closed   bool

	// OnFrame, when set, runs after each frame is latched with the number
	// of frames consumed so far.
	OnFrame func(n int)
}

// SetChannels overrides the reported channel count.
func (d *FakeDevice) SetChannels(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = n
}

func (d *FakeDevice) Name() string { return d.name }

func (d *FakeDevice) Channels() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels
}

// Enabled reports whether the device was opened through a backend.
func (d *FakeDevice) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// Closed reports whether Close was called since the last open.
func (d *FakeDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Consumed returns the number of frames latched so far.
func (d *FakeDevice) Consumed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos
}

func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// ReadChannel latches the next frame on channel 0.
func (d *FakeDevice) ReadChannel(index int) (Reading, error) {
	d.mu.Lock()
	if index == 0 || d.current == nil {
		if d.pos >= len(d.frames) {
			d.mu.Unlock()
			return Reading{}, io.EOF
		}
		f := d.frames[d.pos]
		d.current = &f
		d.pos++
		n, hook := d.pos, d.OnFrame
		d.mu.Unlock()
		if hook != nil {
			hook(n)
		}
		d.mu.Lock()
	}
	f := *d.current
	d.mu.Unlock()

	if f.Err != nil {
		return Reading{}, f.Err
	}
	scale := f.Scale
	if scale == 0 {
		scale = 1
	}
	switch index {
	case 0:
		return Reading{Raw: f.X, Scale: scale}, nil
	case 1:
		return Reading{Raw: f.Y, Scale: scale}, nil
	}
	return Reading{}, fmt.Errorf("channel %d out of range", index)
}
