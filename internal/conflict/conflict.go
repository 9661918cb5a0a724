// Package conflict decides how a busy desired port gets resolved: returned
// as-is, cooperatively negotiated away from, or forcibly reclaimed.
package conflict

import (
	"context"
	"fmt"

	"github.com/devlocal-io/devserve/internal/inspector"
)

// Action is the outcome of a conflict decision.
type Action int

const (
	// ActionUseAlternative moves this run to another port.
	ActionUseAlternative Action = iota
	// ActionStopOther terminates the occupant and keeps the desired port.
	ActionStopOther
	// ActionCancel aborts the start entirely.
	ActionCancel
)

// String returns the action name used in logs and metrics labels.
func (a Action) String() string {
	switch a {
	case ActionUseAlternative:
		return "use-alternative"
	case ActionStopOther:
		return "stop-other"
	case ActionCancel:
		return "cancel"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is produced once per conflict by a DecisionProvider.
type Decision struct {
	Action Action
}

// DecisionProvider supplies a decision for an own-ecosystem conflict. It is
// the only seam through which a user prompt can reach the resolver;
// production wires an interactive prompt, tests wire a script.
type DecisionProvider interface {
	AskConflict(ctx context.Context, port int, occupant inspector.ProcessInfo) (Decision, error)
}

// AutoProvider is the headless policy: never prompt, always move to an
// alternative port.
type AutoProvider struct{}

// AskConflict always chooses ActionUseAlternative.
func (AutoProvider) AskConflict(context.Context, int, inspector.ProcessInfo) (Decision, error) {
	return Decision{Action: ActionUseAlternative}, nil
}

// UserCancelledError means the decision provider declined the conflict; the
// whole start call fails with it.
type UserCancelledError struct {
	Port int
}

func (e *UserCancelledError) Error() string {
	return fmt.Sprintf("start cancelled: port %d conflict declined", e.Port)
}

// PortUnavailableError means every resolution path was exhausted.
type PortUnavailableError struct {
	Port int
	Err  error
}

func (e *PortUnavailableError) Error() string {
	return fmt.Sprintf("no usable port could be resolved for %d: %v", e.Port, e.Err)
}

func (e *PortUnavailableError) Unwrap() error { return e.Err }
