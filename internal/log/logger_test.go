package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSetupWriterJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "DEBUG", "json")

	Debug("hello", "key", "value")

	line := strings.TrimSpace(buf.String())
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", line, err)
	}
	if record["msg"] != "hello" || record["key"] != "value" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestSetupInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "bogus", "json")

	Debug("should be suppressed")
	Info("should appear")

	out := buf.String()
	if strings.Contains(out, "should be suppressed") {
		t.Fatalf("debug line logged at fallback INFO level: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("info line missing: %s", out)
	}
}

func TestWithComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "INFO", "json")

	WithComponent("executor").Info("tick")

	if !strings.Contains(buf.String(), `"component":"executor"`) {
		t.Fatalf("component field missing: %s", buf.String())
	}
}
