package portmanager

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/devlocal-io/devserve/internal/config"
)

// occupyPort binds an ephemeral localhost port and returns it with its
// listener still open.
func occupyPort(t *testing.T) (int, net.Listener) {
	t.Helper()

	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to bind test listener: %v", err)
	}
	return listener.Addr().(*net.TCPAddr).Port, listener
}

func TestIsAvailable(t *testing.T) {
	port, listener := occupyPort(t)

	if IsAvailable(port) {
		t.Errorf("IsAvailable(%d) = true while listener is bound, want false", port)
	}

	if err := listener.Close(); err != nil {
		t.Fatalf("failed to close listener: %v", err)
	}

	if !IsAvailable(port) {
		t.Errorf("IsAvailable(%d) = false after listener closed, want true", port)
	}
}

func TestIsListening(t *testing.T) {
	port, listener := occupyPort(t)
	defer listener.Close()

	if !IsListening(port) {
		t.Errorf("IsListening(%d) = false with live listener, want true", port)
	}

	free, err := EphemeralPort()
	if err != nil {
		t.Fatalf("EphemeralPort() error = %v", err)
	}
	if IsListening(free) {
		t.Errorf("IsListening(%d) = true on a free port, want false", free)
	}
}

func TestEphemeralPort(t *testing.T) {
	port, err := EphemeralPort()
	if err != nil {
		t.Fatalf("EphemeralPort() error = %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Errorf("EphemeralPort() = %d, want a valid port number", port)
	}
	if !IsAvailable(port) {
		t.Errorf("EphemeralPort() returned %d which is not bindable", port)
	}
}

func TestWaitUntilFreeImmediate(t *testing.T) {
	port, err := EphemeralPort()
	if err != nil {
		t.Fatalf("EphemeralPort() error = %v", err)
	}

	if err := WaitUntilFree(context.Background(), port, 2*time.Second); err != nil {
		t.Errorf("WaitUntilFree() on free port error = %v, want nil", err)
	}
}

func TestWaitUntilFreeAfterRelease(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing-sensitive test in short mode")
	}

	port, listener := occupyPort(t)

	go func() {
		time.Sleep(300 * time.Millisecond)
		listener.Close()
	}()

	if err := WaitUntilFree(context.Background(), port, 5*time.Second); err != nil {
		t.Errorf("WaitUntilFree() error = %v, want nil after listener released", err)
	}
}

func TestWaitUntilFreeTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing-sensitive test in short mode")
	}

	port, listener := occupyPort(t)
	defer listener.Close()

	start := time.Now()
	err := WaitUntilFree(context.Background(), port, 500*time.Millisecond)
	if err == nil {
		t.Fatal("WaitUntilFree() = nil on a port that stays busy, want error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("WaitUntilFree() took %v, want bounded by timeout", elapsed)
	}
}

func TestWaitUntilFreeHonorsContext(t *testing.T) {
	port, listener := occupyPort(t)
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := WaitUntilFree(ctx, port, 30*time.Second); err == nil {
		t.Fatal("WaitUntilFree() = nil after context cancellation, want error")
	}
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		name      string
		framework string
		desired   int
		want      []int
	}{
		{
			name:      "react uses conventional table",
			framework: config.FrameworkReact,
			desired:   3000,
			want:      []int{3001, 3002, 3003, 3004, 3005},
		},
		{
			name:      "vite uses conventional table",
			framework: config.FrameworkVite,
			desired:   5173,
			want:      []int{5174, 5175, 5176, 5177, 5178},
		},
		{
			name:      "static uses conventional table",
			framework: config.FrameworkStatic,
			desired:   8080,
			want:      []int{8081, 8082, 8083, 8084, 8085},
		},
		{
			name:      "unknown framework counts up from desired",
			framework: config.FrameworkCustom,
			desired:   4200,
			want:      []int{4201, 4202, 4203, 4204, 4205},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Candidates(tt.framework, tt.desired)
			if len(got) != len(tt.want) {
				t.Fatalf("Candidates() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Candidates()[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFindAlternative(t *testing.T) {
	tests := []struct {
		name      string
		framework string
		desired   int
		busy      map[int]bool
		want      int
	}{
		{
			name:      "first candidate free",
			framework: config.FrameworkReact,
			desired:   3000,
			busy:      map[int]bool{},
			want:      3001,
		},
		{
			name:      "skips busy candidates",
			framework: config.FrameworkReact,
			desired:   3000,
			busy:      map[int]bool{3001: true, 3002: true},
			want:      3003,
		},
		{
			name:      "generic framework",
			framework: "custom",
			desired:   9000,
			busy:      map[int]bool{9001: true},
			want:      9002,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			available := func(port int) bool { return !tt.busy[port] }

			got, err := FindAlternative(tt.framework, tt.desired, available)
			if err != nil {
				t.Fatalf("FindAlternative() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FindAlternative() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFindAlternativeFallsBackToEphemeral(t *testing.T) {
	// Every table candidate is busy; only the OS-allocated port probes
	// available.
	calls := 0
	available := func(port int) bool {
		calls++
		return calls > len(Candidates(config.FrameworkReact, 3000))
	}

	got, err := FindAlternative(config.FrameworkReact, 3000, available)
	if err != nil {
		t.Fatalf("FindAlternative() error = %v", err)
	}
	if got <= 0 {
		t.Errorf("FindAlternative() = %d, want an OS-allocated port", got)
	}
	for _, candidate := range Candidates(config.FrameworkReact, 3000) {
		if got == candidate {
			t.Errorf("FindAlternative() = %d, want a port outside the exhausted table", got)
		}
	}
}

func TestFindAlternativeVerifiesEphemeral(t *testing.T) {
	// The probe rejects everything, including the ephemeral fallback.
	nothing := func(int) bool { return false }

	if _, err := FindAlternative(config.FrameworkVite, 5173, nothing); err == nil {
		t.Fatal("FindAlternative() = nil error with no available port, want error")
	}
}
