// Package config loads the devserve.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the project configuration file devserve looks for.
const DefaultFileName = "devserve.yaml"

// Framework identifiers understood by the port table and readiness detector.
// Any other value falls back to generic behavior.
const (
	FrameworkReact  = "react"
	FrameworkNext   = "next"
	FrameworkVite   = "vite"
	FrameworkStatic = "static"
	FrameworkCustom = "custom"
)

// Project describes one development server run. It is immutable input to the
// orchestrator; the detection/scaffolding layer that produces it is out of
// scope here beyond reading it from devserve.yaml.
type Project struct {
	Name           string `yaml:"name"`
	Framework      string `yaml:"framework"`
	Port           int    `yaml:"port"`
	Script         string `yaml:"script"`
	PackageManager string `yaml:"packageManager"`
	Workspace      string `yaml:"workspace"`

	// ReadinessPatterns overrides the built-in per-framework table of
	// case-insensitive output substrings that signal the server is up.
	ReadinessPatterns []string `yaml:"readinessPatterns,omitempty"`

	// OwnProcessPatterns overrides the built-in list of command-line shapes
	// classified as own-ecosystem dev servers.
	OwnProcessPatterns []string `yaml:"ownProcessPatterns,omitempty"`

	// PollReadiness makes the TCP poller the sole readiness signal,
	// skipping output matching, for tools whose startup banner is
	// misleading or absent.
	PollReadiness bool `yaml:"pollReadiness,omitempty"`
}

// Load reads and validates a project configuration file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if project.Workspace == "" {
		project.Workspace = filepath.Dir(path)
	}
	if !filepath.IsAbs(project.Workspace) {
		project.Workspace = filepath.Join(filepath.Dir(path), project.Workspace)
	}
	project.Workspace = filepath.Clean(project.Workspace)

	applyDefaults(&project)

	if err := project.Validate(); err != nil {
		return nil, err
	}

	return &project, nil
}

// Find locates devserve.yaml by walking up from dir to the filesystem root.
func Find(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}

	for {
		candidate := filepath.Join(current, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%s not found in %s or any parent directory", DefaultFileName, dir)
		}
		current = parent
	}
}

// applyDefaults fills unset fields with framework-appropriate values.
func applyDefaults(p *Project) {
	if p.Framework == "" {
		p.Framework = FrameworkCustom
	}
	if p.PackageManager == "" {
		p.PackageManager = "npm"
	}
	if p.Script == "" {
		p.Script = "dev"
	}
	if p.Port == 0 {
		p.Port = defaultPort(p.Framework)
	}
	if p.Name == "" {
		p.Name = filepath.Base(p.Workspace)
	}

	// PORT env var wins over the configured value, matching dev-server
	// conventions.
	if env := os.Getenv("PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil && port > 0 {
			p.Port = port
		}
	}
}

// defaultPort returns the conventional dev-server port for a framework.
func defaultPort(framework string) int {
	switch framework {
	case FrameworkReact, FrameworkNext:
		return 3000
	case FrameworkVite:
		return 5173
	case FrameworkStatic:
		return 8080
	default:
		return 3000
	}
}

// Validate checks that the project is runnable.
func (p *Project) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("project name is required")
	case p.Workspace == "":
		return fmt.Errorf("workspace directory is required for project %s", p.Name)
	case p.Script == "":
		return fmt.Errorf("run script is required for project %s", p.Name)
	case p.Port <= 0 || p.Port > 65535:
		return fmt.Errorf("port %d for project %s is outside valid range 1-65535", p.Port, p.Name)
	default:
		return nil
	}
}
