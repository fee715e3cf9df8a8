package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestLogErrorWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("debug", &buf)

	LogError(logger, "service", "RefreshDashboard", "fetch eod_data", map[string]int{"page": 2}, errors.New("timeout"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	if entry["module"] != "service" || entry["funcName"] != "RefreshDashboard" {
		t.Fatalf("missing module fields: %v", entry)
	}
	if entry["msg"] != "timeout" || entry["level"] != "error" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	logger := New("chatty")
	if logger.GetLevel().String() != "info" {
		t.Fatalf("expected info level, got %s", logger.GetLevel())
	}
}
