package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// --- Logging ---

func TestLogLevel(t *testing.T) {
	tests := []struct {
		env  string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{" debug ", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Setenv("LOG_LEVEL", tt.env)
		if got := LogLevel(); got != tt.want {
			t.Errorf("LOG_LEVEL=%q: got %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, "json").Debug("hidden")
	NewLogger(&buf, slog.LevelInfo, "json").Info("shown")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected a single JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "shown" {
		t.Errorf("expected msg=shown, got %v", record["msg"])
	}

	buf.Reset()
	NewLogger(&buf, slog.LevelInfo, "text").Info("plain")
	if !bytes.Contains(buf.Bytes(), []byte("msg=plain")) {
		t.Errorf("expected text format, got %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger for empty context")
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("expected logger from context")
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger = WithRequestID(WithActor(WithTaskID(logger, "t-1"), "u-1", "manager"), "r-1")
	logger.Info("task updated")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log record: %v", err)
	}

	want := map[string]string{"task_id": "t-1", "user_id": "u-1", "role": "manager", "request_id": "r-1"}
	for k, v := range want {
		if record[k] != v {
			t.Errorf("expected %s=%s, got %v", k, v, record[k])
		}
	}
}

// --- Metrics ---

func TestMetricsRegistered(t *testing.T) {
	before := testutil.ToFloat64(GateRejections.WithLabelValues(RejectHasDependents))
	GateRejections.WithLabelValues(RejectHasDependents).Inc()

	if got := testutil.ToFloat64(GateRejections.WithLabelValues(RejectHasDependents)); got != before+1 {
		t.Errorf("expected counter %v, got %v", before+1, got)
	}
}
