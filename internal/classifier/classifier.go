// Package classifier labels a port occupant as own-ecosystem (another dev
// server of the kind this tool manages) or foreign.
package classifier

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/devlocal-io/devserve/internal/inspector"
)

// DefaultPatterns is the built-in table of dev-server invocation shapes.
// Matching is a case-folded substring test against the full command line, so
// entries only need to name the distinctive part of the invocation:
// package-manager run commands, bundler/dev-server binaries, process
// supervisors, and parallel task runners. The list is approximate on
// purpose; callers can supply their own via New.
var DefaultPatterns = []string{
	"npm run dev",
	"npm run start",
	"npm start",
	"yarn dev",
	"yarn start",
	"pnpm dev",
	"pnpm run dev",
	"bun run dev",
	"react-scripts start",
	"next dev",
	"next-server",
	"vite",
	"webpack-dev-server",
	"webpack serve",
	"astro dev",
	"nuxt dev",
	"ng serve",
	"http-server",
	"live-server",
	"nodemon",
	"concurrently",
	"turbo run",
}

// Classifier is a pure pattern matcher over command lines. It holds no state
// beyond its pattern table and is safe for concurrent use.
type Classifier struct {
	patterns []string
}

// New creates a Classifier with the given pattern list. Nil or empty falls
// back to DefaultPatterns.
func New(patterns []string) *Classifier {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	folded := make([]string, len(patterns))
	for i, p := range patterns {
		folded[i] = cases.Fold().String(p)
	}

	return &Classifier{patterns: folded}
}

// Classify reports whether the process looks like an own-ecosystem dev
// server. A process with no resolvable command line is foreign: ambiguous
// classification must take the path that needs no live user prompt.
func (c *Classifier) Classify(info inspector.ProcessInfo) bool {
	// Casers are stateful; fold with a fresh one per call.
	commandLine := cases.Fold().String(info.CommandLine())
	if strings.TrimSpace(commandLine) == "" {
		return false
	}

	for _, pattern := range c.patterns {
		if strings.Contains(commandLine, pattern) {
			return true
		}
	}
	return false
}
