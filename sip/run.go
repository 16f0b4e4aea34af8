package sip

import (
	"time"

	"github.com/facebookgo/clock"
)

// A Run captures the instant a build started.
type Run struct {
	started time.Time
}

// NewRun captures the current time of clk. A nil clock means the wall
// clock.
func NewRun(clk clock.Clock) *Run {
	if clk == nil {
		clk = clock.New()
	}
	return &Run{started: clk.Now().UTC()}
}

// Started returns the captured instant. It is the zero time for a nil
// Run.
func (r *Run) Started() time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.started
}

// Timestamp is the captured instant as written into events. A nil Run
// gives the empty string, which is written as unavailable.
func (r *Run) Timestamp() string {
	if r == nil {
		return ""
	}
	return r.started.Format(time.RFC3339)
}
