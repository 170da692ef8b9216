package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewToJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "intent", "enroll")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if entry["msg"] != "kept" || entry["intent"] != "enroll" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewToTextAndInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, "verbose", "TEXT")

	logger.Debug("dropped")
	logger.Info("kept")

	out := buf.String()
	if !strings.Contains(out, "msg=kept") || strings.Contains(out, "dropped") {
		t.Fatalf("unexpected output %q", out)
	}
}
