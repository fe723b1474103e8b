package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestInitWriter_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := InitWriter(&buf, "confluence", slog.LevelInfo)
	log.Debug("hidden")
	log.Info("[engine] cycle complete", "symbols", 2)

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["service"] != "confluence" {
		t.Errorf("service = %v, want confluence", rec["service"])
	}
	if rec["msg"] != "[engine] cycle complete" {
		t.Errorf("msg = %v", rec["msg"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCycleID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// No cycle ID set
	if id := CycleID(ctx); id != "" {
		t.Errorf("expected empty cycle id, got %q", id)
	}

	id := NewCycleID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("NewCycleID() = %q is not a UUID: %v", id, err)
	}
	ctx = WithCycleID(ctx, id)
	if got := CycleID(ctx); got != id {
		t.Errorf("expected %q, got %q", id, got)
	}
}

func TestLogWithCycle(t *testing.T) {
	ctx := context.Background()

	if attrs := LogWithCycle(ctx); attrs != nil {
		t.Errorf("expected nil attrs when no cycle id, got %v", attrs)
	}

	ctx = WithCycleID(ctx, "abc-123")
	if attrs := LogWithCycle(ctx); len(attrs) != 1 {
		t.Fatalf("expected one attr with cycle id set, got %v", attrs)
	}
}
