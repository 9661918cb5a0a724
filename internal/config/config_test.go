package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	t.Setenv("PORT", "")
	dir := t.TempDir()
	path := writeConfig(t, dir, `name: storefront
framework: vite
port: 5200
script: serve
packageManager: pnpm
readinessPatterns:
  - "booted"
pollReadiness: true
`)

	project, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if project.Name != "storefront" {
		t.Errorf("Name = %q, want %q", project.Name, "storefront")
	}
	if project.Framework != FrameworkVite {
		t.Errorf("Framework = %q, want %q", project.Framework, FrameworkVite)
	}
	if project.Port != 5200 {
		t.Errorf("Port = %d, want 5200", project.Port)
	}
	if project.Script != "serve" {
		t.Errorf("Script = %q, want %q", project.Script, "serve")
	}
	if project.PackageManager != "pnpm" {
		t.Errorf("PackageManager = %q, want %q", project.PackageManager, "pnpm")
	}
	if project.Workspace != dir {
		t.Errorf("Workspace = %q, want config directory %q", project.Workspace, dir)
	}
	if len(project.ReadinessPatterns) != 1 || project.ReadinessPatterns[0] != "booted" {
		t.Errorf("ReadinessPatterns = %v, want [booted]", project.ReadinessPatterns)
	}
	if !project.PollReadiness {
		t.Error("PollReadiness = false, want true")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")

	tests := []struct {
		name          string
		content       string
		wantFramework string
		wantPort      int
		wantScript    string
		wantPM        string
	}{
		{
			name:          "react default port",
			content:       "name: app\nframework: react\n",
			wantFramework: FrameworkReact,
			wantPort:      3000,
			wantScript:    "dev",
			wantPM:        "npm",
		},
		{
			name:          "vite default port",
			content:       "name: app\nframework: vite\n",
			wantFramework: FrameworkVite,
			wantPort:      5173,
			wantScript:    "dev",
			wantPM:        "npm",
		},
		{
			name:          "static default port",
			content:       "name: app\nframework: static\n",
			wantFramework: FrameworkStatic,
			wantPort:      8080,
			wantScript:    "dev",
			wantPM:        "npm",
		},
		{
			name:          "missing framework falls back to custom",
			content:       "name: app\n",
			wantFramework: FrameworkCustom,
			wantPort:      3000,
			wantScript:    "dev",
			wantPM:        "npm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)

			project, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if project.Framework != tt.wantFramework {
				t.Errorf("Framework = %q, want %q", project.Framework, tt.wantFramework)
			}
			if project.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", project.Port, tt.wantPort)
			}
			if project.Script != tt.wantScript {
				t.Errorf("Script = %q, want %q", project.Script, tt.wantScript)
			}
			if project.PackageManager != tt.wantPM {
				t.Errorf("PackageManager = %q, want %q", project.PackageManager, tt.wantPM)
			}
		})
	}
}

func TestLoadDefaultNameFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "framework: react\n")

	project, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Base(dir); project.Name != want {
		t.Errorf("Name = %q, want workspace base %q", project.Name, want)
	}
}

func TestLoadPortEnvOverride(t *testing.T) {
	t.Setenv("PORT", "4444")

	path := writeConfig(t, t.TempDir(), "name: app\nframework: react\nport: 3000\n")

	project, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if project.Port != 4444 {
		t.Errorf("Port = %d, want PORT env override 4444", project.Port)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "name: [unclosed\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() = nil error for malformed YAML, want error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), DefaultFileName)); err == nil {
		t.Fatal("Load() = nil error for missing file, want error")
	}
}

func TestValidate(t *testing.T) {
	valid := Project{Name: "app", Workspace: "/tmp/app", Script: "dev", Port: 3000}

	tests := []struct {
		name    string
		mutate  func(*Project)
		wantErr bool
	}{
		{"valid", func(*Project) {}, false},
		{"missing name", func(p *Project) { p.Name = "" }, true},
		{"missing workspace", func(p *Project) { p.Workspace = "" }, true},
		{"missing script", func(p *Project) { p.Script = "" }, true},
		{"port zero", func(p *Project) { p.Port = 0 }, true},
		{"port too high", func(p *Project) { p.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := valid
			tt.mutate(&project)
			if err := project.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "name: app\n")

	nested := filepath.Join(root, "src", "components")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("failed to create nested dirs: %v", err)
	}

	found, err := Find(nested)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if want := filepath.Join(root, DefaultFileName); found != want {
		t.Errorf("Find() = %q, want %q", found, want)
	}
}

func TestFindNotFound(t *testing.T) {
	if _, err := Find(t.TempDir()); err == nil {
		t.Fatal("Find() = nil error with no config anywhere, want error")
	}
}
