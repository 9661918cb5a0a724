package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devlocal-io/devserve/internal/audit"
	"github.com/devlocal-io/devserve/internal/inspector"
	"github.com/devlocal-io/devserve/internal/metrics"
	"github.com/devlocal-io/devserve/internal/portmanager"
)

// Shutdown stage timing defaults.
const (
	DefaultGraceWait     = 2500 * time.Millisecond
	DefaultTerminateWait = 2500 * time.Millisecond
	DefaultReclaimWait   = 500 * time.Millisecond
	DefaultSafetyTimeout = 10 * time.Second

	verifyFreedWait = 2 * time.Second
)

// VerificationWarning is the non-fatal signal that a port still looks busy
// after cleanup completed. Stop resolves successfully and attaches this
// instead of failing.
type VerificationWarning struct {
	Port int
}

func (w *VerificationWarning) Error() string {
	return fmt.Sprintf("port %d still appears busy after shutdown", w.Port)
}

// StopResult reports the outcome of a shutdown. Warning is nil on a clean
// stop.
type StopResult struct {
	Warning error
}

// Coordinator drives the graceful-then-forceful termination sequence and
// independently verifies the port was actually released.
type Coordinator struct {
	inspector *inspector.Inspector
	audit     *audit.Logger

	GraceWait     time.Duration
	TerminateWait time.Duration
	ReclaimWait   time.Duration
	SafetyTimeout time.Duration
}

// NewCoordinator creates a Coordinator with the default stage timings.
func NewCoordinator(ins *inspector.Inspector, auditLog *audit.Logger) *Coordinator {
	if ins == nil {
		ins = inspector.New(nil)
	}
	if auditLog == nil {
		auditLog = audit.New(os.Stderr)
	}
	return &Coordinator{
		inspector:     ins,
		audit:         auditLog,
		GraceWait:     DefaultGraceWait,
		TerminateWait: DefaultTerminateWait,
		ReclaimWait:   DefaultReclaimWait,
		SafetyTimeout: DefaultSafetyTimeout,
	}
}

// Stop tears down a run: interrupt, then terminate, then kill, each stage
// time-boxed; then a survivor sweep of everything still bound to the port;
// then a port-freed verification. Idempotent: a nil or already-exited handle
// resolves trivially. The safety timeout guarantees Stop always returns even
// if a stage hangs.
func (c *Coordinator) Stop(ctx context.Context, h *Handle) (*StopResult, error) {
	result := &StopResult{}
	if h == nil {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.SafetyTimeout)
	defer cancel()

	h.setState(StateStopping)

	select {
	case <-h.done:
		// Child already exited; only the sweep and verification remain.
	default:
		c.terminateChild(ctx, h)
	}

	c.sweepSurvivors(ctx, h.port, "releasing port after run shutdown")

	c.inspector.Invalidate(h.port)
	if err := portmanager.WaitUntilFree(ctx, h.port, verifyFreedWait); err != nil {
		result.Warning = &VerificationWarning{Port: h.port}
		c.audit.Warning(h.port, "port still busy after shutdown cleanup")
		slog.Warn("shutdown verification failed",
			slog.Int("port", h.port),
			slog.String("warning", result.Warning.Error()))
	}

	h.setState(StateIdle)
	return result, nil
}

// terminateChild walks the tracked process through the three signal stages.
func (c *Coordinator) terminateChild(ctx context.Context, h *Handle) {
	stages := []struct {
		sig  inspector.Signal
		wait time.Duration
	}{
		{inspector.SignalInterrupt, c.GraceWait},
		{inspector.SignalTerminate, c.TerminateWait},
		{inspector.SignalKill, 0},
	}

	util := c.inspector.Utility()
	for _, stage := range stages {
		c.audit.Signal(h.port, h.pid, stage.sig.String(), "staged shutdown of tracked process")
		if err := util.SendSignal(h.pid, stage.sig); err != nil {
			slog.Debug("signal delivery failed",
				slog.Int("pid", h.pid),
				slog.String("signal", stage.sig.String()),
				slog.String("error", err.Error()))
		}

		if stage.wait == 0 {
			// The kill stage does not wait for further escalation, only for
			// the reaper (or the safety timeout).
			select {
			case <-h.done:
			case <-ctx.Done():
			}
			return
		}

		select {
		case <-h.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(stage.wait):
		}
	}
}

// sweepSurvivors enumerates every process still bound to the port and kills
// any the handle did not directly track, catching forked descendants.
func (c *Coordinator) sweepSurvivors(ctx context.Context, port int, rationale string) {
	c.inspector.Invalidate(port)
	survivors, err := c.inspector.ListAll(ctx, port)
	if err != nil || len(survivors) == 0 {
		return
	}

	pids := make([]int, len(survivors))
	for i, s := range survivors {
		pids[i] = s.PID
	}
	c.audit.Reclaim(port, pids, rationale)

	util := c.inspector.Utility()
	g, _ := errgroup.WithContext(ctx)
	for _, survivor := range survivors {
		pid := survivor.PID
		g.Go(func() error {
			c.audit.Signal(port, pid, inspector.SignalTerminate.String(), rationale)
			if err := util.SendSignal(pid, inspector.SignalTerminate); err != nil {
				slog.Debug("terminate failed", slog.Int("pid", pid), slog.String("error", err.Error()))
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.ReclaimWait):
			}

			c.audit.Signal(port, pid, inspector.SignalKill.String(), rationale)
			if err := util.SendSignal(pid, inspector.SignalKill); err != nil {
				slog.Debug("kill failed", slog.Int("pid", pid), slog.String("error", err.Error()))
				return nil
			}
			metrics.ProcessesKilled.Inc()
			return nil
		})
	}
	_ = g.Wait()
}

// ReclaimPort aggressively frees a port occupied by processes devserve does
// not track: terminate every occupant, wait briefly, escalate to kill, then
// verify. An error means the port still looks busy (e.g. an OS-protected
// occupant); callers fall back to an alternative port rather than retrying.
func (c *Coordinator) ReclaimPort(ctx context.Context, port int, rationale string) error {
	ctx, cancel := context.WithTimeout(ctx, c.SafetyTimeout)
	defer cancel()

	c.sweepSurvivors(ctx, port, rationale)

	c.inspector.Invalidate(port)
	if err := portmanager.WaitUntilFree(ctx, port, verifyFreedWait); err != nil {
		return fmt.Errorf("port %d still busy after reclamation: %w", port, err)
	}
	return nil
}
