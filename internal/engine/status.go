package engine

import (
	"time"

	"github.com/banshee-data/orientd/internal/orientation"
)

// Status is a snapshot of loop counters for the admin surface.
type Status struct {
	Running        bool                    `json:"running"`
	StartedAt      time.Time               `json:"started_at"`
	Orientation    orientation.Orientation `json:"orientation"`
	LastClassified orientation.Orientation `json:"last_classified"`
	LastSample     *orientation.Sample     `json:"last_sample,omitempty"`
	LastTransition time.Time               `json:"last_transition"`
	Ticks          uint64                  `json:"ticks"`
	Transitions    uint64                  `json:"transitions"`
	ReadErrors     uint64                  `json:"read_errors"`
	ApplyErrors    uint64                  `json:"apply_errors"`
}

// Status returns a copy of the current counters.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.status
	if st.LastSample != nil {
		s := *st.LastSample
		st.LastSample = &s
	}
	return st
}

func (l *Loop) record(fn func(*Status)) {
	l.mu.Lock()
	fn(&l.status)
	l.mu.Unlock()
}
