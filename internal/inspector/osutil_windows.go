//go:build windows

package inspector

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// windowsUtility enumerates sockets with netstat and terminates processes
// with taskkill, the standard tooling present on every supported Windows.
type windowsUtility struct{}

func defaultOSUtility() OSUtility {
	return &windowsUtility{}
}

var listeningLine = regexp.MustCompile(`\s+LISTENING\s+(\d+)\s*$`)

// ListProcessesOnPort parses `netstat -ano -p TCP` for LISTENING sockets on
// the port and resolves each owning PID's command line.
func (w *windowsUtility) ListProcessesOnPort(ctx context.Context, port int) ([]ProcessInfo, error) {
	cmd := exec.CommandContext(ctx, "netstat", "-ano", "-p", "TCP")
	out, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("%w: %v", ErrUtilityMissing, err)
		}
		return nil, fmt.Errorf("netstat failed for port %d: %w", port, err)
	}

	target := fmt.Sprintf(":%d ", port)
	seen := make(map[int]bool)
	var infos []ProcessInfo

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, target) || !strings.Contains(line, "LISTENING") {
			continue
		}
		matches := listeningLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if len(matches) < 2 {
			continue
		}
		pid, err := strconv.Atoi(matches[1])
		if err != nil || seen[pid] {
			continue
		}
		seen[pid] = true

		info := ProcessInfo{PID: pid}
		w.resolveCommand(ctx, &info)
		infos = append(infos, info)
	}

	return infos, nil
}

// resolveCommand fills Command/Args from WMI via PowerShell. Best-effort.
func (w *windowsUtility) resolveCommand(ctx context.Context, info *ProcessInfo) {
	script := fmt.Sprintf(
		`(Get-CimInstance Win32_Process -Filter "ProcessId=%d").CommandLine`, info.PID)
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script)
	out, err := cmd.Output()
	if err != nil {
		return
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) > 0 {
		info.Command = strings.Trim(fields[0], `"`)
		info.Args = fields[1:]
	}
}

// SendSignal terminates a process with taskkill. Windows has no usable
// cross-process equivalent of SIGINT, so the interrupt and terminate levels
// both map to a polite taskkill and only the kill level forces.
func (w *windowsUtility) SendSignal(pid int, sig Signal) error {
	args := []string{"/PID", strconv.Itoa(pid)}
	if sig == SignalKill {
		args = append([]string{"/F"}, args...)
	}

	// #nosec G204 -- binary name is fixed, pid is a validated int
	out, err := exec.Command("taskkill", args...).CombinedOutput()
	if err != nil {
		// "not found" means the process already exited.
		if strings.Contains(string(out), "not found") {
			return nil
		}
		return fmt.Errorf("taskkill failed for pid %d (%s): %w", pid, sig, err)
	}
	return nil
}
