package output

import (
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout redirects os.Stdout for the duration of fn.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read captured output: %v", err)
	}
	return string(data)
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = old

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read captured output: %v", err)
	}
	return string(data)
}

func TestSuccess(t *testing.T) {
	got := captureStdout(t, func() {
		Success("started %s on port %d", "web", 3000)
	})

	if !strings.Contains(got, "started web on port 3000") {
		t.Errorf("Success() output = %q, want formatted message", got)
	}
	if !strings.Contains(got, "✓") {
		t.Errorf("Success() output = %q, want check mark", got)
	}
}

func TestItemIndents(t *testing.T) {
	got := captureStdout(t, func() {
		Item("port: %d", 3000)
	})

	if !strings.HasPrefix(got, "  ") {
		t.Errorf("Item() output = %q, want indented line", got)
	}
}

func TestWarnAndErrorGoToStderr(t *testing.T) {
	stdout := captureStdout(t, func() {
		stderr := captureStderr(t, func() {
			Warn("port %d busy", 3000)
			Error("spawn failed")
		})
		if !strings.Contains(stderr, "port 3000 busy") {
			t.Errorf("Warn() stderr = %q, want warning text", stderr)
		}
		if !strings.Contains(stderr, "spawn failed") {
			t.Errorf("Error() stderr = %q, want error text", stderr)
		}
	})

	if stdout != "" {
		t.Errorf("Warn()/Error() wrote to stdout: %q", stdout)
	}
}

func TestURL(t *testing.T) {
	if got := URL(5173); !strings.Contains(got, "http://localhost:5173") {
		t.Errorf("URL(5173) = %q, want localhost URL", got)
	}
}
