package runner

import "testing"

func TestRunStateString(t *testing.T) {
	tests := []struct {
		state RunState
		want  string
	}{
		{StateIdle, "idle"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateFailed, "failed"},
		{RunState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("RunState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from RunState
		to   RunState
		want bool
	}{
		{"idle to starting", StateIdle, StateStarting, true},
		{"idle to running skips starting", StateIdle, StateRunning, false},
		{"starting to running", StateStarting, StateRunning, true},
		{"starting to stopping", StateStarting, StateStopping, true},
		{"starting to idle on fast exit", StateStarting, StateIdle, true},
		{"running to stopping", StateRunning, StateStopping, true},
		{"running to idle on self exit", StateRunning, StateIdle, true},
		{"running to starting rejected", StateRunning, StateStarting, false},
		{"stopping to idle", StateStopping, StateIdle, true},
		{"stopping to running rejected", StateStopping, StateRunning, false},
		{"failed is terminal except restart", StateFailed, StateIdle, true},
		{"failed to running rejected", StateFailed, StateRunning, false},
		{"any state can fail", StateRunning, StateFailed, true},
		{"idle can fail", StateIdle, StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.canTransition(tt.to); got != tt.want {
				t.Errorf("canTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
