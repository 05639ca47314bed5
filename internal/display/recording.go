package display

import (
	"context"
	"sync"

	"github.com/banshee-data/orientd/internal/orientation"
)

// Call is one effect seen by a RecordingDriver.
type Call struct {
	Effect      string
	Orientation orientation.Orientation
	DeviceID    string
	Matrix      orientation.Matrix
}

// RecordingDriver records effects instead of running commands. Set
// RotationErr or TransformErr to make the matching effect fail.
type RecordingDriver struct {
	mu           sync.Mutex
	calls        []Call
	RotationErr  error
	TransformErr error
}

// SetRotation records a rotation.
func (d *RecordingDriver) SetRotation(_ context.Context, o orientation.Orientation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Effect: EffectRotation, Orientation: o})
	return d.RotationErr
}

// SetInputTransform records a transform.
func (d *RecordingDriver) SetInputTransform(_ context.Context, deviceID string, m orientation.Matrix) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Effect: EffectInputTransform, DeviceID: deviceID, Matrix: m})
	return d.TransformErr
}

// Calls returns a copy of the recorded effects.
func (d *RecordingDriver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Rotations returns the orientations passed to SetRotation, in order.
func (d *RecordingDriver) Rotations() []orientation.Orientation {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []orientation.Orientation
	for _, c := range d.calls {
		if c.Effect == EffectRotation {
			out = append(out, c.Orientation)
		}
	}
	return out
}
