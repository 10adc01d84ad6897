package scanner

import (
	"sync/atomic"
	"time"
)

// gate admits one candidate at a time and drops candidates that arrive
// within window of the last successful redemption.  The in-flight flag
// makes the read of the timestamp and its later update one atomic
// step: no second candidate can pass while the first is being
// validated.
type gate struct {
	window      time.Duration
	busy        atomic.Bool
	lastSuccess atomic.Int64 // unix nanos, 0 before the first success
}

// enter reports whether a candidate seen at now may be validated.  On
// true the caller must call leave.
func (g *gate) enter(now time.Time) (int64, bool) {
	if !g.busy.CompareAndSwap(false, true) {
		return 0, false
	}
	last := g.lastSuccess.Load()
	if last != 0 && now.UnixNano()-last < int64(g.window) {
		g.busy.Store(false)
		return 0, false
	}
	return last, true
}

// leave releases the gate.  A success at time at replaces the
// timestamp observed by enter; failures leave it untouched.
func (g *gate) leave(observed int64, success bool, at time.Time) {
	if success {
		g.lastSuccess.CompareAndSwap(observed, at.UnixNano())
	}
	g.busy.Store(false)
}
