package runner

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/time/rate"

	"github.com/devlocal-io/devserve/internal/config"
	"github.com/devlocal-io/devserve/internal/portmanager"
)

// Readiness poller timing.
const (
	pollInterval   = 2 * time.Second
	pollOverallCap = 5 * time.Minute
)

// defaultReadinessPatterns maps frameworks to the case-insensitive output
// substrings that signal the server is accepting connections. The strings
// are heuristic by nature; devserve.yaml can override them per project.
var defaultReadinessPatterns = map[string][]string{
	config.FrameworkReact: {
		"compiled successfully",
		"you can now view",
		"local:",
	},
	config.FrameworkNext: {
		"ready in",
		"started server on",
		"local:",
	},
	config.FrameworkVite: {
		"ready in",
		"local:",
	},
	config.FrameworkStatic: {
		"available on",
		"serving",
		"listening",
	},
}

// genericReadinessPatterns covers tools without a framework-specific entry.
var genericReadinessPatterns = []string{
	"ready",
	"listening",
	"local:",
	"server running",
	"started",
}

// readinessPatterns returns the folded substring table for a project.
func readinessPatterns(project *config.Project) []string {
	patterns := project.ReadinessPatterns
	if len(patterns) == 0 {
		if p, ok := defaultReadinessPatterns[project.Framework]; ok {
			patterns = p
		} else {
			patterns = genericReadinessPatterns
		}
	}

	folded := make([]string, len(patterns))
	for i, p := range patterns {
		folded[i] = cases.Fold().String(p)
	}
	return folded
}

// matchReadiness tests one output line against the folded pattern table.
func matchReadiness(folded []string, line string) bool {
	lowered := cases.Fold().String(line)
	for _, pattern := range folded {
		if pattern != "" && strings.Contains(lowered, pattern) {
			return true
		}
	}
	return false
}

// pollReadiness substitutes for the output detector when the child's stdout
// is proxied or silent: a raw TCP connect attempt on a fixed interval,
// bounded overall, that funnels through the same one-shot readiness guard.
// It also acts as a backstop when a framework prints an unrecognized banner.
func pollReadiness(ctx context.Context, h *Handle) {
	ctx, cancel := context.WithTimeout(ctx, pollOverallCap)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(pollInterval), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		select {
		case <-h.done:
			return
		default:
		}

		if portmanager.IsListening(h.port) {
			h.markReady("tcp-poll")
			return
		}
	}
}
