package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestNew_JSONFormat(t *testing.T) {
	l := New("json", "info")
	if l == nil {
		t.Fatal("New returned nil")
	}
}

func TestNew_UnknownFormatFallsBackToJSON(t *testing.T) {
	l := New("unknown", "info")
	if l == nil {
		t.Fatal("New returned nil for unknown format")
	}
	if _, ok := l.Handler().(*slog.JSONHandler); !ok {
		t.Errorf("expected a JSON handler for unknown format, got %T", l.Handler())
	}
}

func TestWithContext_FromContext_RoundTrip(t *testing.T) {
	original := New("json", "info")
	ctx := WithContext(context.Background(), original)
	retrieved := FromContext(ctx)
	if retrieved != original {
		t.Error("FromContext returned a different logger than was stored")
	}
}

func TestFromContext_NoLoggerReturnsDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should fall back to slog.Default(), not nil")
	}
}

func TestNew_LevelWarn_FiltersInfo(t *testing.T) {
	l := New("json", "warn")
	if l.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Info level enabled on a logger created at warn level")
	}
}
