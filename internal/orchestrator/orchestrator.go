// Package orchestrator owns the single-run lifecycle: resolve a usable
// port, spawn the dev server, and tear it down on demand.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/devlocal-io/devserve/internal/config"
	"github.com/devlocal-io/devserve/internal/conflict"
	"github.com/devlocal-io/devserve/internal/history"
	"github.com/devlocal-io/devserve/internal/runner"
)

// ErrAlreadyRunning is returned by Start while a run is starting or
// running; there is no queueing.
var ErrAlreadyRunning = errors.New("a run is already in progress")

// ErrStartAborted is returned by Start when Stop was called while the start
// was still in flight.
var ErrStartAborted = errors.New("start aborted by stop request")

// Resolver is the port-resolution seam; production wires conflict.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, project *config.Project) (conflict.Result, error)
}

// Orchestrator coordinates one run at a time. All blocking steps inside
// Start and Stop run strictly in sequence; the state machine rejects a
// second concurrent start outright.
type Orchestrator struct {
	mu            sync.Mutex
	state         runner.RunState
	handle        *runner.Handle
	stopRequested bool
	historyID     int64

	resolver Resolver
	runner   *runner.Runner
	shutdown *runner.Coordinator
	store    *history.Store // optional
	events   runner.Events
}

// New creates an Orchestrator. The history store may be nil.
func New(resolver Resolver, run *runner.Runner, shutdown *runner.Coordinator, store *history.Store, events runner.Events) *Orchestrator {
	return &Orchestrator{
		state:    runner.StateIdle,
		resolver: resolver,
		runner:   run,
		shutdown: shutdown,
		store:    store,
		events:   events,
	}
}

// State returns the orchestrator's current run state.
func (o *Orchestrator) State() runner.RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handle != nil {
		return o.handle.State()
	}
	return o.state
}

// Handle returns the live run handle, or nil when nothing is running.
func (o *Orchestrator) Handle() *runner.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handle
}

// Start resolves a port for the project, spawns its dev server, and returns
// the run handle. A Stop issued while Start is in flight is treated as
// intent to cancel: the run is shut down as soon as a handle exists.
func (o *Orchestrator) Start(ctx context.Context, project *config.Project) (*runner.Handle, error) {
	o.mu.Lock()
	if o.state == runner.StateStarting || o.state == runner.StateRunning {
		o.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	o.state = runner.StateStarting
	o.stopRequested = false
	o.mu.Unlock()

	result, err := o.resolver.Resolve(ctx, project)
	if err != nil {
		o.fail()
		return nil, err
	}
	if result.Warning != "" {
		slog.Warn("port resolved with warning",
			slog.Int("port", result.Port),
			slog.String("warning", result.Warning))
	}

	if o.cancelled() {
		o.reset()
		return nil, ErrStartAborted
	}

	events := o.events
	events.OnExit = o.wrapOnExit(o.events.OnExit)

	handle, err := o.runner.Spawn(ctx, project, result.Port, events)
	if err != nil {
		o.fail()
		return nil, err
	}

	o.mu.Lock()
	o.handle = handle
	cancelled := o.stopRequested
	o.mu.Unlock()

	if o.store != nil {
		if id, err := o.store.RecordStart(project.Name, project.Framework, result.Port, handle.PID()); err == nil {
			o.mu.Lock()
			o.historyID = id
			o.mu.Unlock()
		} else {
			slog.Debug("failed to record run history", slog.String("error", err.Error()))
		}
	}

	if cancelled {
		// Stop arrived before the handle existed; honor it now.
		if _, err := o.stopHandle(ctx, handle, history.OutcomeCancelled); err != nil {
			slog.Warn("failed to stop cancelled run", slog.String("error", err.Error()))
		}
		return nil, ErrStartAborted
	}

	return handle, nil
}

// Stop tears down the active run. Idempotent: calling it when nothing is
// running succeeds trivially and leaves the state Idle.
func (o *Orchestrator) Stop(ctx context.Context) (*runner.StopResult, error) {
	o.mu.Lock()
	o.stopRequested = true
	handle := o.handle
	starting := o.state == runner.StateStarting
	o.mu.Unlock()

	if handle == nil {
		if !starting {
			o.reset()
		}
		// In-flight Start observes stopRequested and stops itself.
		return &runner.StopResult{}, nil
	}

	return o.stopHandle(ctx, handle, history.OutcomeCompleted)
}

// stopHandle runs the shutdown coordinator and releases the handle.
func (o *Orchestrator) stopHandle(ctx context.Context, handle *runner.Handle, outcome string) (*runner.StopResult, error) {
	result, err := o.shutdown.Stop(ctx, handle)
	if err != nil {
		return result, fmt.Errorf("shutdown failed for port %d: %w", handle.Port(), err)
	}

	o.mu.Lock()
	id := o.historyID
	o.handle = nil
	o.historyID = 0
	o.state = runner.StateIdle
	o.mu.Unlock()

	if o.store != nil && id != 0 {
		warning := ""
		if result.Warning != nil {
			warning = result.Warning.Error()
		}
		if err := o.store.RecordEnd(id, outcome, warning); err != nil {
			slog.Debug("failed to finalize run history", slog.String("error", err.Error()))
		}
	}

	return result, nil
}

// wrapOnExit chains the caller's OnExit with orchestrator bookkeeping: an
// exit always releases the run slot.
func (o *Orchestrator) wrapOnExit(next func(code int)) func(code int) {
	return func(code int) {
		o.mu.Lock()
		handle := o.handle
		id := o.historyID
		stopping := o.stopRequested
		if handle != nil && handle.State() != runner.StateStopping {
			// Child died on its own; free the slot so a new start works.
			o.handle = nil
			o.historyID = 0
			if code == 0 {
				o.state = runner.StateIdle
			} else {
				o.state = runner.StateFailed
			}
		}
		o.mu.Unlock()

		if o.store != nil && id != 0 && !stopping {
			outcome := history.OutcomeCompleted
			if code != 0 {
				outcome = history.OutcomeFailed
			}
			if err := o.store.RecordEnd(id, outcome, ""); err != nil {
				slog.Debug("failed to finalize run history", slog.String("error", err.Error()))
			}
		}

		if next != nil {
			next(code)
		}
	}
}

// cancelled reports whether a stop request arrived.
func (o *Orchestrator) cancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopRequested
}

// reset returns the orchestrator to Idle.
func (o *Orchestrator) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = runner.StateIdle
	o.handle = nil
}

// fail marks the orchestrator Failed but leaves it restartable.
func (o *Orchestrator) fail() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = runner.StateFailed
	o.handle = nil
}
