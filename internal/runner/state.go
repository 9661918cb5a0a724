package runner

// RunState is the lifecycle state of one dev-server run. Legal transitions
// are Idle, Starting, Running, Stopping, back to Idle, plus Failed from
// any state. The
// orchestrator owns the state and rejects operations that would put two
// starts in flight for the same handle.
type RunState int

const (
	StateIdle RunState = iota
	StateStarting
	StateRunning
	StateStopping
	StateFailed
)

// String returns the lowercase state name.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// canTransition reports whether moving from s to next is legal.
func (s RunState) canTransition(next RunState) bool {
	if next == StateFailed {
		return true
	}
	switch s {
	case StateIdle:
		return next == StateStarting
	case StateStarting:
		return next == StateRunning || next == StateStopping || next == StateIdle
	case StateRunning:
		return next == StateStopping || next == StateIdle
	case StateStopping:
		return next == StateIdle
	case StateFailed:
		return next == StateIdle
	default:
		return false
	}
}
