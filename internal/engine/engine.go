// Package engine drives the orientation poll loop: one sample per tick,
// classified and applied only when the concrete orientation changes.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/banshee-data/orientd/internal/orientation"
	"github.com/banshee-data/orientd/internal/timeutil"
)

// DefaultInterval is the sleep between ticks.
const DefaultInterval = time.Second

// Sampler produces one acceleration sample per call.
type Sampler interface {
	Sample() (orientation.Sample, error)
}

// Applier applies a concrete orientation.
type Applier interface {
	Apply(ctx context.Context, o orientation.Orientation) error
}

// Transition is an applied orientation change.
type Transition struct {
	From     orientation.Orientation
	To       orientation.Orientation
	Sample   orientation.Sample
	At       time.Time
	ApplyErr error
}

// TransitionObserver is notified after every applied transition, on the
// loop goroutine.
type TransitionObserver interface {
	ObserveTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to TransitionObserver.
type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) ObserveTransition(ctx context.Context, t Transition) { f(ctx, t) }

// State is the only mutable decision state. It changes only through the
// classifier's output.
type State struct {
	LastOrientation orientation.Orientation
}

// TickResult describes what one tick did.
type TickResult struct {
	Sample      orientation.Sample
	Orientation orientation.Orientation
	Applied     bool
	Err         error
}

// Options configures a Loop. Zero values select defaults.
type Options struct {
	Interval  time.Duration
	Clock     timeutil.Clock
	Log       logrus.FieldLogger
	Observers []TransitionObserver
}

// Loop owns the engine state. Step and Run must be called from a single
// goroutine; Status may be called from any.
type Loop struct {
	sampler   Sampler
	applier   Applier
	interval  time.Duration
	clock     timeutil.Clock
	log       logrus.FieldLogger
	observers []TransitionObserver

	state State

	mu     sync.Mutex
	status Status
}

// New builds a loop around a sampler and an applier.
func New(sampler Sampler, applier Applier, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Loop{
		sampler:   sampler,
		applier:   applier,
		interval:  opts.Interval,
		clock:     opts.Clock,
		log:       opts.Log,
		observers: opts.Observers,
	}
}

// State returns the current engine state.
func (l *Loop) State() State { return l.state }

// Step runs a single tick: sample, classify and, when the orientation is
// concrete and differs from the last one, apply it. A failed read skips the
// tick. A failed apply is reported but still updates the state so the
// same effect is not retried on every tick.
func (l *Loop) Step(ctx context.Context) TickResult {
	s, err := l.sampler.Sample()
	if err != nil {
		l.log.WithError(err).Warn("sample read failed, skipping tick")
		l.record(func(st *Status) {
			st.Ticks++
			st.ReadErrors++
		})
		return TickResult{Orientation: orientation.Unknown, Err: err}
	}

	o := orientation.Classify(s)
	res := TickResult{Sample: s, Orientation: o}
	if !o.IsConcrete() || o == l.state.LastOrientation {
		if !o.IsConcrete() {
			l.log.WithFields(logrus.Fields{"x": s.X, "y": s.Y}).Debug("no orientation region matched")
		}
		l.record(func(st *Status) {
			st.Ticks++
			st.LastSample = &s
			st.LastClassified = o
		})
		return res
	}

	prev := l.state.LastOrientation
	applyErr := l.applier.Apply(ctx, o)
	l.state.LastOrientation = o
	res.Applied = true
	res.Err = applyErr

	entry := l.log.WithFields(logrus.Fields{"from": prev.String(), "to": o.String()})
	if applyErr != nil {
		entry.WithError(applyErr).Error("orientation applied with errors")
	} else {
		entry.Info("orientation changed")
	}

	t := Transition{From: prev, To: o, Sample: s, At: l.clock.Now(), ApplyErr: applyErr}
	l.record(func(st *Status) {
		st.Ticks++
		st.Transitions++
		if applyErr != nil {
			st.ApplyErrors++
		}
		st.LastSample = &s
		st.LastClassified = o
		st.Orientation = o
		st.LastTransition = t.At
	})
	for _, obs := range l.observers {
		obs.ObserveTransition(ctx, t)
	}
	return res
}

// Run ticks immediately and then once per interval until ctx is
// cancelled. Cancellation is observed between ticks; Run then returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.record(func(st *Status) {
		st.Running = true
		st.StartedAt = l.clock.Now()
	})
	l.log.WithField("interval", l.interval.String()).Info("poll loop running")

	defer func() {
		l.record(func(st *Status) { st.Running = false })
		l.log.Info("poll loop shutting down")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		l.Step(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-l.clock.After(l.interval):
		}
	}
}
