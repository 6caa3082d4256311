package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_LevelParsing(t *testing.T) {
	tests := []struct {
		level   string
		debugOn bool
		infoOn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"error", false, false},
		{"DEBUG", true, true},
		{"", false, true},
		{"bogus", false, true},
	}
	ctx := context.Background()
	for _, tt := range tests {
		logger := New(tt.level, "text")
		if got := logger.Enabled(ctx, slog.LevelDebug); got != tt.debugOn {
			t.Errorf("level %q: debug enabled = %v, want %v", tt.level, got, tt.debugOn)
		}
		if got := logger.Enabled(ctx, slog.LevelInfo); got != tt.infoOn {
			t.Errorf("level %q: info enabled = %v, want %v", tt.level, got, tt.infoOn)
		}
	}
}

func TestNew_Formats(t *testing.T) {
	if New("info", "json") == nil {
		t.Fatal("expected a json logger")
	}
	if New("info", "text") == nil {
		t.Fatal("expected a text logger")
	}
	if New("info", "") == nil {
		t.Fatal("unknown format should fall back to text")
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if id := RequestID(ctx); id != "" {
		t.Errorf("expected empty request id, got %q", id)
	}
	ctx = WithRequestID(ctx, "req-123")
	if id := RequestID(ctx); id != "req-123" {
		t.Errorf("expected req-123, got %q", id)
	}
}

func TestFromContext_DefaultWhenUnset(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected the default logger")
	}
}

func TestL_AttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-9")

	L(ctx).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-9") {
		t.Errorf("expected request_id in output, got %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestL_NoRequestIDLeavesLoggerAlone(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	L(WithLogger(context.Background(), logger)).Info("plain")

	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("unexpected request_id attribute: %q", buf.String())
	}
}
