// Package runner spawns and monitors the dev-server child process and tears
// it down through a staged shutdown sequence.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/devlocal-io/devserve/internal/audit"
	"github.com/devlocal-io/devserve/internal/config"
	"github.com/devlocal-io/devserve/internal/metrics"
)

// SpawnError reports a dev server that failed to launch, with whatever
// stderr it produced before dying.
type SpawnError struct {
	Project string
	Stderr  string
	Err     error
}

func (e *SpawnError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("failed to start dev server for %s: %v\nstderr:\n%s", e.Project, e.Err, e.Stderr)
	}
	return fmt.Sprintf("failed to start dev server for %s: %v", e.Project, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Events are the subscription points for one run. Any callback may be nil.
// OnReady fires exactly once per run no matter how many times the readiness
// signal recurs.
type Events struct {
	OnOutput func(line string, stderr bool)
	OnReady  func(port int)
	OnExit   func(code int)
	OnError  func(err error)
}

// Handle is the live reference to one spawned process and its bound port,
// owned by the orchestrator for the duration of one start-stop cycle.
type Handle struct {
	mu        sync.Mutex
	project   *config.Project
	cmd       *exec.Cmd
	pid       int
	port      int
	state     RunState
	output    *LogBuffer
	patterns  []string
	events    Events
	startedAt time.Time
	readyOnce sync.Once
	exitOnce  sync.Once
	streams   sync.WaitGroup
	done      chan struct{}
	exitCode  int
	cancel    context.CancelFunc
}

// Port returns the port the child was bound to.
func (h *Handle) Port() int { return h.port }

// PID returns the child's process id, or 0 before spawn.
func (h *Handle) PID() int { return h.pid }

// Project returns the immutable run configuration.
func (h *Handle) Project() *config.Project { return h.project }

// Output returns the run's output sink.
func (h *Handle) Output() *LogBuffer { return h.output }

// Done is closed when the child process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// State returns the current run state.
func (h *Handle) State() RunState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ExitCode returns the child's exit code once Done is closed.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// setState applies a transition, dropping illegal ones with a debug log so a
// late callback cannot resurrect a finished run.
func (h *Handle) setState(next RunState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.canTransition(next) {
		slog.Debug("ignoring illegal state transition",
			slog.String("from", h.state.String()),
			slog.String("to", next.String()))
		return
	}
	h.state = next
}

// Runner spawns dev-server processes and wires up their monitoring.
type Runner struct {
	audit *audit.Logger
}

// New creates a Runner. The audit logger records every spawn.
func New(auditLog *audit.Logger) *Runner {
	if auditLog == nil {
		auditLog = audit.New(os.Stderr)
	}
	return &Runner{audit: auditLog}
}

// Spawn launches the project's configured script through its package manager
// in the workspace directory, with the target port exposed to the child as
// PORT. The returned handle is in the Starting state; readiness monitoring
// transitions it to Running.
func (r *Runner) Spawn(ctx context.Context, project *config.Project, port int, events Events) (*Handle, error) {
	name, args := packageManagerInvocation(project.PackageManager, project.Script)

	// With pollReadiness the TCP poller is the sole readiness signal, so
	// output matching is disabled entirely.
	patterns := readinessPatterns(project)
	if project.PollReadiness {
		patterns = nil
	}

	runCtx, cancel := context.WithCancel(context.Background())

	// #nosec G204 -- command comes from devserve.yaml project configuration
	cmd := exec.Command(name, args...)
	cmd.Dir = project.Workspace
	cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", port))

	handle := &Handle{
		project:   project,
		cmd:       cmd,
		port:      port,
		state:     StateStarting,
		output:    NewLogBuffer(1000),
		patterns:  patterns,
		events:    events,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		cancel:    cancel,
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &SpawnError{Project: project.Name, Err: fmt.Errorf("failed to create stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, &SpawnError{Project: project.Name, Err: fmt.Errorf("failed to create stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &SpawnError{Project: project.Name, Err: err}
	}

	handle.pid = cmd.Process.Pid
	metrics.RunsStarted.Inc()
	r.audit.Spawn(port, handle.pid, name+" "+project.Script)

	slog.Info("dev server spawned",
		slog.String("project", project.Name),
		slog.String("framework", project.Framework),
		slog.Int("port", port),
		slog.Int("pid", handle.pid))

	handle.streams.Add(2)
	go streamOutput(handle, stdout, false)
	go streamOutput(handle, stderr, true)
	go waitForExit(handle)
	go pollReadiness(runCtx, handle)

	// Respect caller cancellation that arrives before any explicit stop.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-handle.done:
		}
	}()

	return handle, nil
}

// packageManagerInvocation maps a package manager and script to the exec
// invocation. Windows package-manager shims are batch files.
func packageManagerInvocation(packageManager, script string) (string, []string) {
	name := packageManager
	if runtime.GOOS == "windows" {
		switch name {
		case "npm", "yarn", "pnpm":
			name += ".cmd"
		}
	}

	switch packageManager {
	case "yarn":
		return name, []string{script}
	case "bun":
		return name, []string{"run", script}
	default:
		// npm, pnpm, and anything npm-shaped
		return name, []string{"run", script}
	}
}

// streamOutput reads one pipe line by line, feeding the output sink, the
// OnOutput subscription, and the readiness detector.
func streamOutput(h *Handle, pipe io.ReadCloser, stderr bool) {
	defer h.streams.Done()

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		h.output.Add(line, stderr)

		if h.events.OnOutput != nil {
			h.events.OnOutput(line, stderr)
		}

		if matchReadiness(h.patterns, line) {
			h.markReady("output")
		}
	}
}

// waitForExit reaps the child and resets the handle. A non-zero or
// unexpected exit is reported but never retried automatically.
func waitForExit(h *Handle) {
	// The stream readers must drain both pipes before Wait closes them.
	// They see EOF as soon as the child exits, so this does not stall,
	// and TailStderr holds the full output before OnExit fires.
	h.streams.Wait()

	err := h.cmd.Wait()
	h.cancel()

	code := 0
	if err != nil {
		code = h.cmd.ProcessState.ExitCode()
	}

	h.exitOnce.Do(func() {
		h.mu.Lock()
		h.exitCode = code
		wasStopping := h.state == StateStopping
		h.mu.Unlock()

		if code != 0 && !wasStopping {
			metrics.RunsFailed.Inc()
			h.setState(StateFailed)
			slog.Warn("dev server exited unexpectedly",
				slog.String("project", h.project.Name),
				slog.Int("pid", h.pid),
				slog.Int("code", code))
			if h.events.OnError != nil {
				h.events.OnError(&SpawnError{
					Project: h.project.Name,
					Stderr:  h.output.TailStderr(20),
					Err:     fmt.Errorf("dev server exited with code %d", code),
				})
			}
		} else {
			h.setState(StateIdle)
		}

		close(h.done)
		if h.events.OnExit != nil {
			h.events.OnExit(code)
		}
	})
}

// markReady fires the one-shot readiness transition.
func (h *Handle) markReady(source string) {
	h.readyOnce.Do(func() {
		h.setState(StateRunning)
		metrics.ReadinessSeconds.Observe(time.Since(h.startedAt).Seconds())

		slog.Info("dev server ready",
			slog.String("project", h.project.Name),
			slog.Int("port", h.port),
			slog.String("signal", source))

		if h.events.OnReady != nil {
			h.events.OnReady(h.port)
		}
	})
}
