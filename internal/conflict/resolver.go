package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/devlocal-io/devserve/internal/classifier"
	"github.com/devlocal-io/devserve/internal/config"
	"github.com/devlocal-io/devserve/internal/inspector"
	"github.com/devlocal-io/devserve/internal/metrics"
	"github.com/devlocal-io/devserve/internal/portmanager"
)

// Ports abstracts port probing and alternative lookup so resolver tests run
// without touching the network.
type Ports interface {
	IsAvailable(port int) bool
	FindAlternative(framework string, desired int) (int, error)
}

// Inspecting is the slice of the inspector the resolver needs.
type Inspecting interface {
	Inspect(ctx context.Context, port int) (*inspector.ProcessInfo, error)
}

// Reclaimer frees a busy port by terminating its occupants.
type Reclaimer interface {
	ReclaimPort(ctx context.Context, port int, rationale string) error
}

// realPorts adapts package portmanager to the Ports interface.
type realPorts struct{}

func (realPorts) IsAvailable(port int) bool { return portmanager.IsAvailable(port) }

func (realPorts) FindAlternative(framework string, desired int) (int, error) {
	return portmanager.FindAlternative(framework, desired, nil)
}

// Result is the resolved port plus any non-fatal warning recorded on the
// way there.
type Result struct {
	Port    int
	Warning string
}

// Resolver runs the conflict decision protocol. It never assumes exclusive
// ownership of the port namespace: every destructive action is followed by
// independent re-verification.
type Resolver struct {
	ports      Ports
	inspecting Inspecting
	classify   *classifier.Classifier
	decisions  DecisionProvider
	reclaimer  Reclaimer

	// WritePortBack, when set, records an alternative port into the
	// project's own configuration. Failures are non-fatal.
	WritePortBack func(port int) error
}

// NewResolver wires the resolution pipeline. A nil ports implementation
// selects the real network probes; a nil decision provider selects the
// headless auto policy.
func NewResolver(ports Ports, ins Inspecting, cls *classifier.Classifier, decisions DecisionProvider, reclaimer Reclaimer) *Resolver {
	if ports == nil {
		ports = realPorts{}
	}
	if cls == nil {
		cls = classifier.New(nil)
	}
	if decisions == nil {
		decisions = AutoProvider{}
	}
	return &Resolver{
		ports:      ports,
		inspecting: ins,
		classify:   cls,
		decisions:  decisions,
		reclaimer:  reclaimer,
	}
}

// Resolve returns a verified-usable port for the project. When the desired
// port is free it is returned untouched with zero destructive OS calls and
// no inspection.
func (r *Resolver) Resolve(ctx context.Context, project *config.Project) (Result, error) {
	desired := project.Port

	if r.ports.IsAvailable(desired) {
		return Result{Port: desired}, nil
	}

	occupant, err := r.inspecting.Inspect(ctx, desired)
	if err != nil {
		if !errors.Is(err, inspector.ErrNotFound) {
			slog.Warn("port inspection failed, treating occupant as foreign",
				slog.Int("port", desired),
				slog.String("error", err.Error()))
		}
		// Incomplete OS data defaults to the foreign path: self-contained,
		// no live prompt required.
		return r.reclaimForeign(ctx, project, nil)
	}

	occupant.OwnEcosystem = r.classify.Classify(*occupant)
	if !occupant.OwnEcosystem {
		return r.reclaimForeign(ctx, project, occupant)
	}

	return r.negotiate(ctx, project, occupant)
}

// negotiate handles an own-ecosystem occupant: obtain a decision before any
// destructive action.
func (r *Resolver) negotiate(ctx context.Context, project *config.Project, occupant *inspector.ProcessInfo) (Result, error) {
	desired := project.Port

	slog.Info("port occupied by own-ecosystem dev server",
		slog.Int("port", desired),
		slog.Int("pid", occupant.PID),
		slog.String("project", occupant.ProjectName))

	decision, err := r.decisions.AskConflict(ctx, desired, *occupant)
	if err != nil {
		return Result{}, fmt.Errorf("conflict decision failed for port %d: %w", desired, err)
	}

	switch decision.Action {
	case ActionUseAlternative:
		metrics.PortConflicts.WithLabelValues(decision.Action.String()).Inc()
		return r.useAlternative(project, "")

	case ActionStopOther:
		metrics.PortConflicts.WithLabelValues(decision.Action.String()).Inc()
		if err := r.reclaimer.ReclaimPort(ctx, desired, "user chose to stop the occupying project"); err != nil {
			// Occupant would not die; continue on an alternative rather
			// than failing the run.
			warning := fmt.Sprintf("could not free port %d: %v", desired, err)
			return r.useAlternative(project, warning)
		}
		return Result{Port: desired}, nil

	case ActionCancel:
		metrics.PortConflicts.WithLabelValues(decision.Action.String()).Inc()
		return Result{}, &UserCancelledError{Port: desired}

	default:
		return Result{}, fmt.Errorf("unknown conflict action %d for port %d", int(decision.Action), desired)
	}
}

// reclaimForeign terminates every foreign occupant without prompting, then
// falls back to an alternative port if the reclamation could not be
// verified.
func (r *Resolver) reclaimForeign(ctx context.Context, project *config.Project, occupant *inspector.ProcessInfo) (Result, error) {
	desired := project.Port

	rationale := "foreign process occupies desired dev-server port"
	if occupant != nil {
		rationale = fmt.Sprintf("foreign process %d (%s) occupies desired dev-server port", occupant.PID, occupant.Command)
	}

	if err := r.reclaimer.ReclaimPort(ctx, desired, rationale); err != nil {
		metrics.PortConflicts.WithLabelValues("reclaim-fallback").Inc()
		warning := fmt.Sprintf("could not free port %d: %v", desired, err)
		slog.Warn("foreign reclamation incomplete, using alternative port",
			slog.Int("port", desired),
			slog.String("error", err.Error()))
		return r.useAlternative(project, warning)
	}

	metrics.PortConflicts.WithLabelValues("reclaimed").Inc()
	return Result{Port: desired}, nil
}

// useAlternative delegates to the alternative finder and writes the new port
// back into the project configuration when a writer is wired.
func (r *Resolver) useAlternative(project *config.Project, warning string) (Result, error) {
	alternative, err := r.ports.FindAlternative(project.Framework, project.Port)
	if err != nil {
		return Result{}, &PortUnavailableError{Port: project.Port, Err: err}
	}

	if r.WritePortBack != nil {
		if err := r.WritePortBack(alternative); err != nil {
			slog.Warn("failed to record alternative port in project config",
				slog.Int("port", alternative),
				slog.String("error", err.Error()))
		}
	}

	slog.Info("using alternative port",
		slog.String("project", project.Name),
		slog.Int("desired", project.Port),
		slog.Int("port", alternative))

	return Result{Port: alternative, Warning: warning}, nil
}
