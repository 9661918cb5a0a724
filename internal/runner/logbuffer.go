package runner

import (
	"strings"
	"sync"
	"time"
)

// LogEntry is one captured output line from the dev server.
type LogEntry struct {
	Time   time.Time `json:"time"`
	Line   string    `json:"line"`
	Stderr bool      `json:"stderr"`
}

// LogBuffer is a bounded ring of output lines. It is the run's output sink:
// the spawner appends every stdout/stderr line and the dashboard reads it
// back. Safe for concurrent use.
type LogBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	head    int
	full    bool
	total   int
}

// NewLogBuffer creates a buffer holding at most capacity lines.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LogBuffer{entries: make([]LogEntry, capacity)}
}

// Add appends a line, evicting the oldest when full.
func (b *LogBuffer) Add(line string, stderr bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = LogEntry{Time: time.Now(), Line: line, Stderr: stderr}
	b.head = (b.head + 1) % len(b.entries)
	if b.head == 0 {
		b.full = true
	}
	b.total++
}

// Total returns the absolute number of lines ever added, including evicted
// ones. Streaming readers use it as a cursor.
func (b *LogBuffer) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Since returns the entries added after the absolute cursor, along with the
// new cursor. Entries evicted from the ring before the cursor was consumed
// are silently skipped.
func (b *LogBuffer) Since(cursor int) ([]LogEntry, int) {
	b.mu.Lock()
	total := b.total
	b.mu.Unlock()

	if cursor >= total {
		return nil, total
	}

	entries := b.Entries()
	missed := total - cursor
	if missed > len(entries) {
		missed = len(entries)
	}
	return entries[len(entries)-missed:], total
}

// Entries returns a copy of the buffered lines in arrival order.
func (b *LogBuffer) Entries() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]LogEntry, b.head)
		copy(out, b.entries[:b.head])
		return out
	}

	out := make([]LogEntry, 0, len(b.entries))
	out = append(out, b.entries[b.head:]...)
	out = append(out, b.entries[:b.head]...)
	return out
}

// Len reports how many lines are buffered.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.full {
		return len(b.entries)
	}
	return b.head
}

// TailStderr returns up to n of the most recent stderr lines joined with
// newlines, for attaching diagnostics to spawn failures.
func (b *LogBuffer) TailStderr(n int) string {
	entries := b.Entries()

	var lines []string
	for i := len(entries) - 1; i >= 0 && len(lines) < n; i-- {
		if entries[i].Stderr {
			lines = append(lines, entries[i].Line)
		}
	}

	// Reverse back into chronological order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}
