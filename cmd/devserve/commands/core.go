// Package commands implements the devserve CLI subcommands.
package commands

import (
	"fmt"
	"os"

	"github.com/devlocal-io/devserve/internal/audit"
	"github.com/devlocal-io/devserve/internal/classifier"
	"github.com/devlocal-io/devserve/internal/config"
	"github.com/devlocal-io/devserve/internal/conflict"
	"github.com/devlocal-io/devserve/internal/inspector"
	"github.com/devlocal-io/devserve/internal/runner"
	"github.com/devlocal-io/devserve/internal/yamlutil"
)

// Version is stamped by the build.
var Version = "dev"

// core bundles the wired orchestration components shared by subcommands.
type core struct {
	configPath string
	project    *config.Project
	audit      *audit.Logger
	inspector  *inspector.Inspector
	classifier *classifier.Classifier
	runner     *runner.Runner
	shutdown   *runner.Coordinator
}

// loadCore locates devserve.yaml and wires the component graph.
func loadCore(configFlag string) (*core, error) {
	path := configFlag
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path, err = config.Find(cwd)
		if err != nil {
			return nil, err
		}
	}

	project, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	auditLog := audit.Open(project.Workspace)
	ins := inspector.New(nil)

	return &core{
		configPath: path,
		project:    project,
		audit:      auditLog,
		inspector:  ins,
		classifier: classifier.New(project.OwnProcessPatterns),
		runner:     runner.New(auditLog),
		shutdown:   runner.NewCoordinator(ins, auditLog),
	}, nil
}

// newResolver builds a conflict resolver over the core with the given
// decision provider, wiring port write-back into the project config file.
func (c *core) newResolver(decisions conflict.DecisionProvider) *conflict.Resolver {
	resolver := conflict.NewResolver(nil, c.inspector, c.classifier, decisions, c.shutdown)
	resolver.WritePortBack = c.writePortBack
	return resolver
}

// writePortBack records an alternative port in devserve.yaml, preserving the
// file's comments and formatting.
func (c *core) writePortBack(port int) error {
	data, err := os.ReadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.configPath, err)
	}

	updated, err := yamlutil.SetScalarOrAppend(string(data), "port", port)
	if err != nil {
		return fmt.Errorf("failed to update port in %s: %w", c.configPath, err)
	}

	if err := os.WriteFile(c.configPath, []byte(updated), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.configPath, err)
	}
	return nil
}
