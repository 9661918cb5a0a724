// Package inspector resolves which OS processes are bound to a TCP port and
// extracts identifying metadata about them.
package inspector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"
)

// ErrNotFound is returned when no process could be resolved for a port,
// including when the underlying OS utility is unavailable. Callers fall back
// to the self-contained aggressive path on this error rather than failing.
var ErrNotFound = errors.New("no process found on port")

// ErrUtilityMissing indicates the platform process-enumeration utility
// (lsof, netstat) is not installed or not executable.
var ErrUtilityMissing = errors.New("process inspection utility unavailable")

// Signal is a platform-neutral termination signal level.
type Signal int

const (
	// SignalInterrupt asks the process to shut down as if by Ctrl-C.
	SignalInterrupt Signal = iota
	// SignalTerminate is a stronger, still-catchable request.
	SignalTerminate
	// SignalKill is forceful and cannot be caught.
	SignalKill
)

// String returns the conventional name of the signal level.
func (s Signal) String() string {
	switch s {
	case SignalInterrupt:
		return "interrupt"
	case SignalTerminate:
		return "terminate"
	case SignalKill:
		return "kill"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// ProcessInfo identifies one process bound to a port. Instances live for a
// single conflict-resolution decision and are never persisted.
type ProcessInfo struct {
	PID           int
	Command       string
	Args          []string
	WorkingDir    string
	StartedAt     time.Time
	OwnEcosystem  bool
	ProjectName   string
	WorkspacePath string
}

// CommandLine returns the full invocation as a single string.
func (p ProcessInfo) CommandLine() string {
	if len(p.Args) == 0 {
		return p.Command
	}
	return p.Command + " " + strings.Join(p.Args, " ")
}

// OSUtility is the platform command collaborator: socket/process enumeration
// plus signal delivery. Two backends exist, selected by platform at startup.
type OSUtility interface {
	// ListProcessesOnPort enumerates every process listening on the port.
	ListProcessesOnPort(ctx context.Context, port int) ([]ProcessInfo, error)
	// SendSignal delivers a termination signal to a process.
	SendSignal(pid int, sig Signal) error
}

const (
	cacheTTL       = 2 * time.Second
	cacheSweep     = 30 * time.Second
	breakerTrips   = 3
	breakerReset   = 30 * time.Second
	inspectTimeout = 5 * time.Second
)

// Inspector answers "who is on this port" with a short-lived cache and a
// circuit breaker around the OS utility, so a host without lsof degrades to
// fast NotFound answers instead of repeated subprocess failures.
type Inspector struct {
	osutil  OSUtility
	cache   *cache.Cache
	breaker *gobreaker.CircuitBreaker
}

// New creates an Inspector over the given OS utility. A nil utility selects
// the platform default backend.
func New(osutil OSUtility) *Inspector {
	if osutil == nil {
		osutil = defaultOSUtility()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "process-inspection",
		Timeout: breakerReset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
	})

	return &Inspector{
		osutil:  osutil,
		cache:   cache.New(cacheTTL, cacheSweep),
		breaker: breaker,
	}
}

// Utility exposes the underlying OS collaborator for signal delivery.
func (i *Inspector) Utility() OSUtility {
	return i.osutil
}

// Inspect resolves the first process bound to the port. Returns ErrNotFound
// when the port has no resolvable occupant, including when the OS utility is
// missing or the breaker is open.
func (i *Inspector) Inspect(ctx context.Context, port int) (*ProcessInfo, error) {
	infos, err := i.ListAll(ctx, port)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, ErrNotFound
	}

	info := infos[0]
	enrich(&info)
	return &info, nil
}

// ListAll enumerates every process bound to the port. The result is cached
// briefly; conflict resolution probes the same port several times in one
// decision and the underlying utility is a subprocess spawn.
func (i *Inspector) ListAll(ctx context.Context, port int) ([]ProcessInfo, error) {
	key := fmt.Sprintf("port:%d", port)
	if cached, ok := i.cache.Get(key); ok {
		return cached.([]ProcessInfo), nil
	}

	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	result, err := i.breaker.Execute(func() (interface{}, error) {
		return i.osutil.ListProcessesOnPort(ctx, port)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, ErrUtilityMissing) {
			slog.Debug("process inspection degraded",
				slog.Int("port", port),
				slog.String("error", err.Error()))
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to inspect port %d: %w", port, err)
	}
	infos, _ := result.([]ProcessInfo)

	i.cache.Set(key, infos, cache.DefaultExpiration)
	return infos, nil
}

// Invalidate drops any cached inspection for the port. Called after signals
// are sent so re-verification sees fresh state.
func (i *Inspector) Invalidate(port int) {
	i.cache.Delete(fmt.Sprintf("port:%d", port))
}

// enrich fills the heuristic ProjectName/WorkspacePath fields from the
// command line and working directory. Best-effort: fields may stay empty.
func enrich(info *ProcessInfo) {
	workspace := info.WorkingDir

	// A dev server launched through a package manager usually runs with the
	// project root as its working directory; failing that, look for an
	// absolute path argument.
	if workspace == "" {
		for _, arg := range info.Args {
			if filepath.IsAbs(arg) && !strings.HasPrefix(arg, "-") {
				workspace = arg
				break
			}
		}
	}

	if workspace != "" {
		info.WorkspacePath = filepath.Clean(workspace)
		info.ProjectName = filepath.Base(info.WorkspacePath)
	}
}
