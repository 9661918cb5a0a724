package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var events []map[string]interface{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var event map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("audit line is not JSON: %v: %s", err, scanner.Text())
		}
		events = append(events, event)
	}
	return events
}

func TestSignalEvent(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Signal(3000, 4242, "terminate", "releasing port after run shutdown")

	events := decodeLines(t, &buf)
	if len(events) != 1 {
		t.Fatalf("got %d audit events, want 1", len(events))
	}

	event := events[0]
	if event["action"] != "signal" {
		t.Errorf("action = %v, want signal", event["action"])
	}
	if event["port"] != float64(3000) {
		t.Errorf("port = %v, want 3000", event["port"])
	}
	if event["pid"] != float64(4242) {
		t.Errorf("pid = %v, want 4242", event["pid"])
	}
	if event["signal"] != "terminate" {
		t.Errorf("signal = %v, want terminate", event["signal"])
	}
	if event["rationale"] == "" || event["rationale"] == nil {
		t.Error("rationale missing, want recorded justification")
	}
	if event["time"] == nil {
		t.Error("time missing, want timestamped event")
	}
}

func TestReclaimEvent(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Reclaim(3000, []int{100, 101}, "foreign process occupies desired dev-server port")

	events := decodeLines(t, &buf)
	if len(events) != 1 {
		t.Fatalf("got %d audit events, want 1", len(events))
	}
	if events[0]["action"] != "reclaim" {
		t.Errorf("action = %v, want reclaim", events[0]["action"])
	}

	pids, ok := events[0]["pids"].([]interface{})
	if !ok || len(pids) != 2 {
		t.Errorf("pids = %v, want both occupants recorded", events[0]["pids"])
	}
}

func TestSpawnAndWarningEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)
	logger.Spawn(5173, 4242, "npm dev")
	logger.Warning(5173, "port still busy after shutdown cleanup")

	events := decodeLines(t, &buf)
	if len(events) != 2 {
		t.Fatalf("got %d audit events, want 2", len(events))
	}
	if events[0]["action"] != "spawn" {
		t.Errorf("first action = %v, want spawn", events[0]["action"])
	}
	if events[1]["action"] != "warning" {
		t.Errorf("second action = %v, want warning", events[1]["action"])
	}
}
