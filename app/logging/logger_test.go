package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewAutoFormatUsesJSONWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("Item published", "item_id", "1", "destination", "threads")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if record["item_id"] != "1" {
		t.Errorf("Expected item_id '1', got %v", record["item_id"])
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "text", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("Item skipped", "decision", "skipped")
	if !strings.Contains(buf.String(), "decision=skipped") {
		t.Errorf("Expected key=value output, got %q", buf.String())
	}
}

func TestNewDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Format: "text", Output: &buf})
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected debug message to be dropped, got %q", buf.String())
	}

	logger, _ = New(Options{Format: "text", Output: &buf, Debug: true})
	logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("Expected debug message, got %q", buf.String())
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("Expected error for unknown format")
	}
}
