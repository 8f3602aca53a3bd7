package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},

		{"DEBUG", LevelDebug},
		{"WARNING", LevelWarn},
		{"Error", LevelError},
		{"dEbUg", LevelDebug},
		{" warn ", LevelWarn},

		{"", LevelInfo},
		{"trace", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"Json", FormatJSON},
		{"text", FormatText},
		{"", FormatText},
		{"yaml", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.expected {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept", "key", "value")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["key"] != "value" {
		t.Errorf("record = %v", rec)
	}
}

func TestSetupWithoutLoki(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn := Setup(Config{Output: &buf})
	logger.Info("hello")
	if err := closeFn(); err != nil {
		t.Errorf("close error = %v", err)
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := New(Config{Output: io.Discard})
	if OrNop(l) != l {
		t.Error("OrNop should return a non-nil logger unchanged")
	}
}

// =============================================================================
// MultiHandler
// =============================================================================

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("boom") }

func TestMultiHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: LevelDebug}),
		failingHandler{slog.NewTextHandler(io.Discard, nil)},
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: LevelError}),
	)
	logger := slog.New(h).With("svc", "htmlshot")

	logger.Debug("debug line")
	logger.Error("error line")

	if !strings.Contains(a.String(), "debug line") || !strings.Contains(a.String(), "svc=htmlshot") {
		t.Errorf("first handler output = %q", a.String())
	}
	if strings.Contains(b.String(), "debug line") || !strings.Contains(b.String(), "error line") {
		t.Errorf("second handler output = %q", b.String())
	}
}

// =============================================================================
// Loki
// =============================================================================

func TestLokiHandlerFlush(t *testing.T) {
	var (
		mu     sync.Mutex
		pushes []lokiPush
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p lokiPush
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode push: %v", err)
		}
		mu.Lock()
		pushes = append(pushes, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewLokiHandler(srv.URL, WithLokiLabels(map[string]string{"env": "test"}))
	logger := slog.New(h)
	logger.With("req", "1").WithGroup("render").Info("done", "bytes", 10)
	logger.Debug("below level")

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(pushes) != 1 || len(pushes[0].Streams) != 1 {
		t.Fatalf("pushes = %+v", pushes)
	}
	st := pushes[0].Streams[0]
	if st.Stream["job"] != "htmlshot" || st.Stream["env"] != "test" {
		t.Errorf("labels = %v", st.Stream)
	}
	if len(st.Values) != 1 {
		t.Fatalf("values = %v", st.Values)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(st.Values[0][1]), &line); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if line["msg"] != "done" || line["req"] != "1" || line["render.bytes"] != float64(10) {
		t.Errorf("line = %v", line)
	}
}

func TestLokiHandlerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	h := NewLokiHandler(srv.URL)
	slog.New(h).Info("x")
	if err := h.Close(); err == nil {
		t.Error("expected error for non-2xx push")
	}
}
