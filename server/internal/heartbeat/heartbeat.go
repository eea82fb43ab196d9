package heartbeat

import (
	"sync/atomic"
	"time"
)

// State is the liveness state of one target.
type State int

const (
	Alive State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "PENDING"
	}
	return "ALIVE"
}

// Liveness holds the state of one target. The zero value is Alive. It is safe
// to Ack from the read goroutine while the sweep runs elsewhere.
type Liveness struct {
	pending atomic.Bool
}

// Ack records a liveness acknowledgement.
func (l *Liveness) Ack() { l.pending.Store(false) }

// State returns the current state.
func (l *Liveness) State() State {
	if l.pending.Load() {
		return Pending
	}
	return Alive
}

// MarkPending moves the target to Pending and reports whether it was
// already Pending.
func (l *Liveness) MarkPending() (wasPending bool) {
	return l.pending.Swap(true)
}

// Target is anything the monitor can probe and reap.
type Target interface {
	MarkPending() (wasPending bool)

	// Ping sends a transport-level probe. It must not block.
	Ping()

	// Terminate forcibly closes the transport. The normal disconnect path
	// then removes the target.
	Terminate()
}

// Result counts what one sweep did.
type Result struct {
	Probed     int
	Terminated int
}

// Sweep runs one heartbeat tick over targets.
func Sweep[T Target](targets []T) Result {
	var res Result
	for _, t := range targets {
		if t.MarkPending() {
			t.Terminate()
			res.Terminated++
			continue
		}
		t.Ping()
		res.Probed++
	}
	return res
}

// DefaultInterval is the tick period used when none is configured.
const DefaultInterval = 30 * time.Second
