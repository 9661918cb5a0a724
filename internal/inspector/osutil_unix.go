//go:build !windows

package inspector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// unixUtility enumerates sockets with lsof and resolves command lines with
// ps. Both are assumed present on macOS and mainstream Linux; their absence
// degrades to ErrUtilityMissing, never a panic.
type unixUtility struct{}

func defaultOSUtility() OSUtility {
	return &unixUtility{}
}

// ListProcessesOnPort finds every PID listening on the port, then resolves
// each one's command line, start time, and working directory.
func (u *unixUtility) ListProcessesOnPort(ctx context.Context, port int) ([]ProcessInfo, error) {
	pids, err := u.pidsOnPort(ctx, port)
	if err != nil {
		return nil, err
	}

	infos := make([]ProcessInfo, 0, len(pids))
	for _, pid := range pids {
		info := ProcessInfo{PID: pid}
		u.resolveCommand(ctx, &info)
		u.resolveWorkingDir(ctx, &info)
		infos = append(infos, info)
	}
	return infos, nil
}

// pidsOnPort runs `lsof -ti tcp:<port> -sTCP:LISTEN`.
func (u *unixUtility) pidsOnPort(ctx context.Context, port int) ([]int, error) {
	// #nosec G204 -- binary name is fixed, port is a validated int
	cmd := exec.CommandContext(ctx, "lsof", "-ti", fmt.Sprintf("tcp:%d", port), "-sTCP:LISTEN")
	out, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("%w: %v", ErrUtilityMissing, err)
		}
		// lsof exits 1 when nothing matches; that is an empty result, not a
		// failure.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("lsof failed for port %d: %w", port, err)
	}

	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// resolveCommand fills Command/Args/StartedAt via ps. Best-effort.
func (u *unixUtility) resolveCommand(ctx context.Context, info *ProcessInfo) {
	// #nosec G204 -- binary name is fixed, pid is a validated int
	cmd := exec.CommandContext(ctx, "ps", "-o", "lstart=,command=", "-p", strconv.Itoa(info.PID))
	out, err := cmd.Output()
	if err != nil {
		return
	}

	line := strings.TrimSpace(string(bytes.TrimSpace(out)))
	if line == "" {
		return
	}

	// lstart is a fixed-width 5-field prefix: "Mon Jan  2 15:04:05 2006".
	fields := strings.Fields(line)
	if len(fields) > 5 {
		if started, err := time.ParseInLocation("Mon Jan 2 15:04:05 2006",
			strings.Join(fields[:5], " "), time.Local); err == nil {
			info.StartedAt = started
		}
		fields = fields[5:]
	}

	if len(fields) > 0 {
		info.Command = fields[0]
		info.Args = fields[1:]
	}
}

// resolveWorkingDir fills WorkingDir via `lsof -a -p <pid> -d cwd -Fn`.
func (u *unixUtility) resolveWorkingDir(ctx context.Context, info *ProcessInfo) {
	// #nosec G204 -- binary name is fixed, pid is a validated int
	cmd := exec.CommandContext(ctx, "lsof", "-a", "-p", strconv.Itoa(info.PID), "-d", "cwd", "-Fn")
	out, err := cmd.Output()
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "n") {
			info.WorkingDir = strings.TrimSpace(strings.TrimPrefix(line, "n"))
			return
		}
	}
}

// SendSignal delivers the platform signal for the given level.
func (u *unixUtility) SendSignal(pid int, sig Signal) error {
	var unixSig syscall.Signal
	switch sig {
	case SignalInterrupt:
		unixSig = syscall.SIGINT
	case SignalTerminate:
		unixSig = syscall.SIGTERM
	case SignalKill:
		unixSig = syscall.SIGKILL
	default:
		return fmt.Errorf("unknown signal level %d", int(sig))
	}

	if err := syscall.Kill(pid, unixSig); err != nil {
		// ESRCH means the process is already gone, which is success for
		// every caller of this method.
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to signal pid %d with %s: %w", pid, sig, err)
	}
	return nil
}
