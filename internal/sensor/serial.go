package sensor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/banshee-data/orientd/internal/monitoring"
)

// maxFrameLine bounds a single frame line. Longer lines are dropped and the
// reader resynchronises on the next newline.
const maxFrameLine = 1024

var errNoFrame = errors.New("no frame received yet")

// SerialOptions describes a serial-attached accelerometer board. Each line
// it emits is one frame of comma or space separated raw integers, x first.
type SerialOptions struct {
	BaudRate int     `json:"baud_rate" mapstructure:"baud_rate"`
	DataBits int     `json:"data_bits" mapstructure:"data_bits"`
	StopBits int     `json:"stop_bits" mapstructure:"stop_bits"`
	Parity   string  `json:"parity" mapstructure:"parity"`
	Scale    float64 `json:"scale" mapstructure:"scale"`
}

// Normalize validates the options and applies defaults for any unset values.
func (o SerialOptions) Normalize() (SerialOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	opts.Parity = parity

	if opts.Scale == 0 {
		opts.Scale = 1
	}
	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o SerialOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
	}
	switch opts.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

// PortOpener opens a serial port. It is swapped out in tests.
type PortOpener func(path string, mode *serial.Mode) (io.ReadCloser, error)

func openSerialPort(path string, mode *serial.Mode) (io.ReadCloser, error) {
	return serial.Open(path, mode)
}

// SerialBackend treats the device name as a serial port path.
type SerialBackend struct {
	Options SerialOptions
	Open    PortOpener
}

// NewSerialBackend returns a backend opening real serial ports.
func NewSerialBackend(opts SerialOptions) *SerialBackend {
	return &SerialBackend{Options: opts, Open: openSerialPort}
}

// OpenDevice opens the port at path and starts draining it in the
// background. Reads return the newest frame, so a board streaming faster
// than the poll interval never builds a backlog.
func (b *SerialBackend) OpenDevice(path string) (Device, error) {
	opts, err := b.Options.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	open := b.Open
	if open == nil {
		open = openSerialPort
	}
	port, err := open(path, mode)
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortNotFound {
			return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, path)
		}
		return nil, fmt.Errorf("%w: %q: %v", ErrDeviceNotFound, path, err)
	}

	d := &serialDevice{
		path:  path,
		port:  port,
		scale: opts.Scale,
		done:  make(chan struct{}),
	}
	go d.readLoop()
	return d, nil
}

type serialDevice struct {
	path  string
	port  io.ReadCloser
	scale float64

	mu      sync.Mutex
	latest  []int64
	lineErr error // the newest line was unusable
	stopped error // the reader has exited
	latched []int64

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func (d *serialDevice) Name() string { return d.path }

// Channels is fixed: every frame carries at least x and y.
func (d *serialDevice) Channels() int { return 2 }

// Close closes the port, which unblocks the reader, and waits for the
// reader to exit.
func (d *serialDevice) Close() error {
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		d.closeErr = d.port.Close()
		<-d.done
	})
	return d.closeErr
}

// ReadChannel latches the newest frame when channel 0 is read; higher
// channels come from the same frame.
func (d *serialDevice) ReadChannel(index int) (Reading, error) {
	if index < 0 || index >= d.Channels() {
		return Reading{}, fmt.Errorf("channel %d out of range", index)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if index == 0 || d.latched == nil {
		d.latched = nil
		switch {
		case d.stopped != nil:
			return Reading{}, d.stopped
		case d.lineErr != nil:
			return Reading{}, d.lineErr
		case d.latest == nil:
			return Reading{}, errNoFrame
		}
		d.latched = d.latest
	}
	return Reading{Raw: d.latched[index], Scale: d.scale}, nil
}

// readLoop keeps the newest parsed line until the port fails or is closed.
// An over-long line restarts the scanner instead of ending the stream.
func (d *serialDevice) readLoop() {
	defer close(d.done)
	for {
		err := d.scan()
		if errors.Is(err, bufio.ErrTooLong) && !d.closing.Load() {
			d.store(nil, fmt.Errorf("frame longer than %d bytes dropped", maxFrameLine))
			continue
		}
		if err == nil {
			err = io.EOF
		}
		d.mu.Lock()
		d.stopped = fmt.Errorf("serial port %s: %w", d.path, err)
		d.mu.Unlock()
		if !d.closing.Load() {
			monitoring.Logf("serial reader for %s stopped: %v", d.path, err)
		}
		return
	}
}

func (d *serialDevice) scan() error {
	scanner := bufio.NewScanner(d.port)
	scanner.Buffer(make([]byte, 0, 256), maxFrameLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d.store(parseFrame(line))
	}
	return scanner.Err()
}

func (d *serialDevice) store(frame []int64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.lineErr = err
		return
	}
	d.latest = frame
	d.lineErr = nil
}

func parseFrame(line string) ([]int64, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) < 2 {
		return nil, fmt.Errorf("invalid frame %q: expected at least 2 values", line)
	}
	out := make([]int64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frame %q: %w", line, err)
		}
		out[i] = v
	}
	return out, nil
}
