package slogobs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/leofalp/graphyte/providers/observability"
)

func TestHandler_Compact(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(&HandlerOptions{
		Format: FormatCompact,
		Level:  slog.LevelDebug,
		Output: &buf,
		Colors: false,
	})

	logger := slog.New(handler)
	logger.Info("Test message", "key1", "value1", "key2", 42)

	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Errorf("Expected INFO level in output, got: %s", output)
	}
	if !strings.Contains(output, "Test message") {
		t.Errorf("Expected message in output, got: %s", output)
	}
	if !strings.Contains(output, " -> ") {
		t.Errorf("Expected -> separator in output, got: %s", output)
	}
	if !strings.Contains(output, `"key1":"value1"`) {
		t.Errorf("Expected JSON attributes in output, got: %s", output)
	}
	if !strings.Contains(output, `"key2":42`) {
		t.Errorf("Expected JSON attributes in output, got: %s", output)
	}
}

func TestHandler_Pretty(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(&HandlerOptions{
		Format: FormatPretty,
		Level:  slog.LevelDebug,
		Output: &buf,
		Colors: false,
	})

	logger := slog.New(handler)
	logger.Info("Test message", "key1", "value1", "key2", 42)

	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Errorf("Expected INFO level in output, got: %s", output)
	}
	if !strings.Contains(output, "Test message") {
		t.Errorf("Expected message in output, got: %s", output)
	}
	if !strings.Contains(output, "├─") || !strings.Contains(output, "└─") {
		t.Errorf("Expected tree symbols in output, got: %s", output)
	}
	// keys are sorted, so key1 precedes key2
	if strings.Index(output, "key1") > strings.Index(output, "key2") {
		t.Errorf("Expected sorted attributes, got: %s", output)
	}
	if !strings.Contains(output, "key1: value1") {
		t.Errorf("Expected key-value pair in output, got: %s", output)
	}
	if !strings.Contains(output, "key2: 42") {
		t.Errorf("Expected key-value pair in output, got: %s", output)
	}
}

func TestHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(&HandlerOptions{
		Format: FormatJSON,
		Level:  slog.LevelDebug,
		Output: &buf,
		Colors: false,
	})

	logger := slog.New(handler)
	logger.Info("Test message", "key1", "value1", "key2", 42)

	output := buf.String()
	if !strings.Contains(output, `"level":"INFO"`) {
		t.Errorf("Expected level in JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"msg":"Test message"`) {
		t.Errorf("Expected msg in JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"key1":"value1"`) {
		t.Errorf("Expected key1 in JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"key2":42`) {
		t.Errorf("Expected key2 in JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"time":"`) {
		t.Errorf("Expected time in JSON output, got: %s", output)
	}
}

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(&HandlerOptions{
		Format: FormatCompact,
		Level:  slog.LevelWarn,
		Output: &buf,
		Colors: false,
	})

	logger := slog.New(handler)
	logger.Debug("Should not appear")
	logger.Info("Should not appear")
	logger.Warn("Should appear")

	output := buf.String()
	if strings.Contains(output, "Should not appear") {
		t.Errorf("Expected DEBUG and INFO to be filtered out, got: %s", output)
	}
	if !strings.Contains(output, "Should appear") {
		t.Errorf("Expected WARN to appear, got: %s", output)
	}
}

func TestHandler_NoAttributes(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(&HandlerOptions{
		Format: FormatCompact,
		Level:  slog.LevelDebug,
		Output: &buf,
		Colors: false,
	})

	logger := slog.New(handler)
	logger.Info("Message without attributes")

	output := buf.String()
	if strings.Contains(output, " -> ") {
		t.Errorf("Expected no -> separator when no attributes, got: %s", output)
	}
	if strings.Contains(output, "{}") {
		t.Errorf("Expected no empty JSON when no attributes, got: %s", output)
	}
}

func TestHandler_Enabled(t *testing.T) {
	handler := NewHandler(&HandlerOptions{
		Format: FormatCompact,
		Level:  slog.LevelInfo,
		Output: &bytes.Buffer{},
		Colors: false,
	})

	ctx := context.Background()
	if handler.Enabled(ctx, slog.LevelDebug) {
		t.Error("Expected DEBUG to be disabled when level is INFO")
	}
	if !handler.Enabled(ctx, slog.LevelInfo) {
		t.Error("Expected INFO to be enabled when level is INFO")
	}
	if !handler.Enabled(ctx, slog.LevelWarn) {
		t.Error("Expected WARN to be enabled when level is INFO")
	}
	if !handler.Enabled(ctx, slog.LevelError) {
		t.Error("Expected ERROR to be enabled when level is INFO")
	}
}

func TestHandler_TraceLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(&HandlerOptions{
		Format: FormatCompact,
		Level:  slog.LevelDebug - 4,
		Output: &buf,
		Colors: false,
	})

	logger := slog.New(handler)
	logger.Log(context.Background(), slog.LevelDebug-4, "Trace message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "TRACE") {
		t.Errorf("Expected TRACE level in output, got: %s", output)
	}
	if !strings.Contains(output, "Trace message") {
		t.Errorf("Expected trace message in output, got: %s", output)
	}
}

func TestHandler_TraceIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Format: FormatJSON, Level: slog.LevelInfo, Output: &buf}))

	ctx := observability.ContextWithTrace(context.Background(), observability.TraceInfo{TraceID: "trace_0123"})
	logger.InfoContext(ctx, "Stage completed", "stage", "01_domain_identifier")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid JSON line %q: %v", buf.String(), err)
	}
	if record["trace_id"] != "trace_0123" {
		t.Errorf("Expected trace_id from context, got %v", record["trace_id"])
	}
	if record["stage"] != "01_domain_identifier" {
		t.Errorf("Expected stage attribute, got %v", record["stage"])
	}
}

func TestHandler_WithGroupAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Format: FormatJSON, Level: slog.LevelInfo, Output: &buf}))
	logger.With("run", "r1").WithGroup("step").Info("msg", "name", "topics")

	output := buf.String()
	if !strings.Contains(output, `"run":"r1"`) || !strings.Contains(output, `"step.name":"topics"`) {
		t.Errorf("Expected stored and grouped attributes, got: %s", output)
	}
}

func TestTee_WritesToAllEnabledHandlers(t *testing.T) {
	var console, file bytes.Buffer
	logger := slog.New(Tee(
		NewHandler(&HandlerOptions{Format: FormatCompact, Level: slog.LevelWarn, Output: &console}),
		NewHandler(&HandlerOptions{Format: FormatJSON, Level: slog.LevelDebug, Output: &file}),
		nil,
	))

	logger.Debug("detail")
	logger.Warn("careful")

	if strings.Contains(console.String(), "detail") {
		t.Errorf("console should filter DEBUG, got: %s", console.String())
	}
	if !strings.Contains(console.String(), "careful") {
		t.Errorf("console missing WARN, got: %s", console.String())
	}
	if lines := strings.Count(file.String(), "\n"); lines != 2 {
		t.Errorf("file expected 2 lines, got %d: %s", lines, file.String())
	}
}
