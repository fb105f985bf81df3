package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"anonwall/pkg/config"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(config.LoggingConfig{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unsupported level")
	}
}

func TestJSONHandlerEmitsOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("comment posted", "sender_id", int64(42), "ok", true)

	var got entry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if got.Level != "info" || got.Message != "comment posted" {
		t.Fatalf("entry = %+v", got)
	}
	if got.Fields["sender_id"] != float64(42) || got.Fields["ok"] != true {
		t.Fatalf("fields = %v", got.Fields)
	}
	if got.Timestamp == "" {
		t.Fatal("timestamp missing")
	}
}

func TestJSONHandlerLiftsComponent(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.With("component", "gateway").Info("listening")

	var got entry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if got.Component != "gateway" {
		t.Fatalf("component = %q, want gateway", got.Component)
	}
	if _, ok := got.Fields["component"]; ok {
		t.Fatal("component leaked into fields")
	}
}

func TestJSONHandlerGroupsUseDottedKeys(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.WithGroup("vk").Info("probe ok", "latency_ms", int64(12))

	var got entry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if got.Fields["vk.latency_ms"] != float64(12) {
		t.Fatalf("fields = %v, want dotted group key", got.Fields)
	}
}

func TestJSONHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("suppressed")
	log.Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], "kept") {
		t.Fatalf("output = %q, want only the warn record", buf.String())
	}
}

func TestEnvOverridesFormat(t *testing.T) {
	t.Setenv("ANONWALL_LOG_FORMAT", "json")

	var buf bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("hello")

	var got entry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("expected JSON output under ANONWALL_LOG_FORMAT=json: %v", err)
	}
}
