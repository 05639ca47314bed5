// Package display applies an orientation: it rotates the screen and sets
// the matching coordinate transformation on the input device.
package display

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/banshee-data/orientd/internal/orientation"
)

// Effects issued for each applied orientation.
const (
	EffectRotation       = "display rotation"
	EffectInputTransform = "input transform"
)

// ErrNotConcrete is returned when asked to apply Unknown.
var ErrNotConcrete = errors.New("orientation has no rotation")

// ApplyEffectError reports one failed external effect.
type ApplyEffectError struct {
	Effect      string
	Orientation orientation.Orientation
	Err         error
}

func (e *ApplyEffectError) Error() string {
	return fmt.Sprintf("%s to %s: %v", e.Effect, e.Orientation, e.Err)
}

func (e *ApplyEffectError) Unwrap() error { return e.Err }

// DisplayDriver performs the two external effects of a rotation.
type DisplayDriver interface {
	SetRotation(ctx context.Context, o orientation.Orientation) error
	SetInputTransform(ctx context.Context, deviceID string, m orientation.Matrix) error
}

// Applier looks up the fixed transform for an orientation and issues both
// effects against the configured input device.
type Applier struct {
	driver   DisplayDriver
	deviceID string
	log      logrus.FieldLogger
}

// NewApplier returns an applier for the given input device.
func NewApplier(driver DisplayDriver, deviceID string, log logrus.FieldLogger) *Applier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Applier{driver: driver, deviceID: deviceID, log: log}
}

// Apply rotates the display and transforms the input device. Both effects
// are attempted even if the first fails, and neither is rolled back; the
// returned error joins every *ApplyEffectError.
func (a *Applier) Apply(ctx context.Context, o orientation.Orientation) error {
	m, ok := orientation.Transform(o)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConcrete, o)
	}

	var errs []error
	if err := a.driver.SetRotation(ctx, o); err != nil {
		errs = append(errs, &ApplyEffectError{Effect: EffectRotation, Orientation: o, Err: err})
	}
	if err := a.driver.SetInputTransform(ctx, a.deviceID, m); err != nil {
		errs = append(errs, &ApplyEffectError{Effect: EffectInputTransform, Orientation: o, Err: err})
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	a.log.WithFields(logrus.Fields{
		"orientation": o.String(),
		"device":      a.deviceID,
		"matrix":      m.String(),
	}).Info("applied orientation")
	return nil
}
