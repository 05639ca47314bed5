package display

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/banshee-data/orientd/internal/orientation"
)

// TransformProperty is the libinput/evdev property holding the 3x3 matrix.
const TransformProperty = "Coordinate Transformation Matrix"

// CommandRunner runs an external program and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec, without a shell.
type ExecRunner struct{}

// Run executes name with args.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// XDriver drives an X11 session through xrandr and xinput.
type XDriver struct {
	Runner CommandRunner
	// Output selects an xrandr output; empty rotates the default screen.
	Output string
	// Timeout bounds each command; zero means no bound.
	Timeout time.Duration
}

// NewXDriver returns a driver running real commands.
func NewXDriver(output string, timeout time.Duration) *XDriver {
	return &XDriver{Runner: ExecRunner{}, Output: output, Timeout: timeout}
}

// RotationCommand returns the argv that rotates the display to o.
func (d *XDriver) RotationCommand(o orientation.Orientation) []string {
	if d.Output != "" {
		return []string{"xrandr", "--output", d.Output, "--rotate", o.String()}
	}
	return []string{"xrandr", "-o", o.String()}
}

// TransformCommand returns the argv that sets m on the input device.
func (d *XDriver) TransformCommand(deviceID string, m orientation.Matrix) []string {
	return append([]string{"xinput", "set-prop", deviceID, TransformProperty}, m.Values()...)
}

// SetRotation runs the rotation command.
func (d *XDriver) SetRotation(ctx context.Context, o orientation.Orientation) error {
	if !o.IsConcrete() {
		return fmt.Errorf("%w: %s", ErrNotConcrete, o)
	}
	return d.run(ctx, d.RotationCommand(o))
}

// SetInputTransform runs the transform command.
func (d *XDriver) SetInputTransform(ctx context.Context, deviceID string, m orientation.Matrix) error {
	return d.run(ctx, d.TransformCommand(deviceID, m))
}

func (d *XDriver) run(ctx context.Context, argv []string) error {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	runner := d.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	out, err := runner.Run(ctx, argv[0], argv[1:]...)
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("timed out after %s: %w", d.Timeout, ctx.Err())
	}
	if msg := strings.TrimSpace(string(out)); msg != "" {
		return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
	}
	return fmt.Errorf("%s: %w", argv[0], err)
}
