package classifier

import (
	"testing"

	"github.com/devlocal-io/devserve/internal/inspector"
)

func TestClassifyDefaultPatterns(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name    string
		command string
		args    []string
		want    bool
	}{
		{
			name:    "npm run dev",
			command: "npm",
			args:    []string{"run", "dev"},
			want:    true,
		},
		{
			name:    "vite binary",
			command: "node",
			args:    []string{"/project/node_modules/.bin/vite"},
			want:    true,
		},
		{
			name:    "next dev server",
			command: "node",
			args:    []string{"/project/node_modules/next/dist/bin/next", "dev"},
			want:    true,
		},
		{
			name:    "react-scripts",
			command: "node",
			args:    []string{"/project/node_modules/.bin/react-scripts", "start"},
			want:    true,
		},
		{
			name:    "yarn start",
			command: "yarn",
			args:    []string{"start"},
			want:    true,
		},
		{
			name:    "case insensitive match",
			command: "NPM",
			args:    []string{"RUN", "DEV"},
			want:    true,
		},
		{
			name:    "postgres is foreign",
			command: "postgres",
			args:    []string{"-D", "/var/lib/postgresql/data"},
			want:    false,
		},
		{
			name:    "python http server is foreign",
			command: "python3",
			args:    []string{"-m", "flask", "run"},
			want:    false,
		},
		{
			name:    "docker proxy is foreign",
			command: "docker-proxy",
			args:    []string{"-proto", "tcp", "-host-port", "3000"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := inspector.ProcessInfo{Command: tt.command, Args: tt.args}
			if got := c.Classify(info); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", info.CommandLine(), got, tt.want)
			}
		})
	}
}

func TestClassifyEmptyCommandLineIsForeign(t *testing.T) {
	c := New(nil)

	if c.Classify(inspector.ProcessInfo{}) {
		t.Error("Classify() with empty command line = true, want false")
	}
	if c.Classify(inspector.ProcessInfo{Command: "   "}) {
		t.Error("Classify() with blank command = true, want false")
	}
}

func TestClassifyCustomPatterns(t *testing.T) {
	c := New([]string{"my-dev-tool serve"})

	own := inspector.ProcessInfo{Command: "my-dev-tool", Args: []string{"serve", "--port", "3000"}}
	if !c.Classify(own) {
		t.Errorf("Classify(%q) = false, want true with custom patterns", own.CommandLine())
	}

	// Custom patterns replace the defaults entirely.
	npm := inspector.ProcessInfo{Command: "npm", Args: []string{"run", "dev"}}
	if c.Classify(npm) {
		t.Errorf("Classify(%q) = true, want false when defaults are replaced", npm.CommandLine())
	}
}
