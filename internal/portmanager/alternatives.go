package portmanager

import (
	"fmt"
	"log/slog"

	"github.com/devlocal-io/devserve/internal/config"
)

// frameworkPorts maps a framework to its conventional alternative ports,
// tried in order when the desired port is busy. Loaded once, read-only.
var frameworkPorts = map[string][]int{
	config.FrameworkReact:  {3001, 3002, 3003, 3004, 3005},
	config.FrameworkNext:   {3001, 3002, 3003, 3004, 3005},
	config.FrameworkVite:   {5174, 5175, 5176, 5177, 5178},
	config.FrameworkStatic: {8081, 8082, 8083, 8084, 8085},
}

// genericCandidateCount is how many ports after the desired one are tried
// for frameworks without a conventional table.
const genericCandidateCount = 5

// Candidates returns the ordered alternative-port list for a framework.
// Unknown frameworks get desiredPort+1..+5.
func Candidates(framework string, desiredPort int) []int {
	if ports, ok := frameworkPorts[framework]; ok {
		// Copy so callers cannot mutate the table.
		out := make([]int, len(ports))
		copy(out, ports)
		return out
	}

	out := make([]int, 0, genericCandidateCount)
	for i := 1; i <= genericCandidateCount; i++ {
		out = append(out, desiredPort+i)
	}
	return out
}

// FindAlternative proposes a verified-available replacement for a busy port.
//
// Candidates from the framework table are probed in order; if all are busy
// an OS-level ephemeral allocation is used. The returned port is re-verified
// available at return time via the supplied probe.
func FindAlternative(framework string, desiredPort int, available func(int) bool) (int, error) {
	if available == nil {
		available = IsAvailable
	}

	for _, candidate := range Candidates(framework, desiredPort) {
		if available(candidate) {
			slog.Debug("alternative port selected",
				slog.String("framework", framework),
				slog.Int("desired", desiredPort),
				slog.Int("port", candidate))
			return candidate, nil
		}
	}

	// Whole table exhausted; fall back to whatever the OS hands out.
	port, err := EphemeralPort()
	if err != nil {
		return 0, fmt.Errorf("no alternative port for %d: %w", desiredPort, err)
	}
	if !available(port) {
		return 0, fmt.Errorf("ephemeral port %d was taken before it could be used", port)
	}

	slog.Debug("alternative port allocated by OS",
		slog.Int("desired", desiredPort),
		slog.Int("port", port))
	return port, nil
}
