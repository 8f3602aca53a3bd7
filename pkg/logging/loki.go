package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const lokiFlushInterval = 5 * time.Second

// LokiHandler is a slog.Handler that batches records and pushes them to Loki.
// Handlers derived with WithAttrs or WithGroup share the parent's buffer.
type LokiHandler struct {
	sink   *lokiSink
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

// lokiSink owns the buffer and the HTTP client shared by derived handlers.
type lokiSink struct {
	url       string
	labels    map[string]string
	client    *http.Client
	batchSize int

	mu    sync.Mutex
	batch [][2]string
	timer *time.Timer
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type lokiPush struct {
	Streams []lokiStream `json:"streams"`
}

// LokiOption configures a LokiHandler.
type LokiOption func(*LokiHandler)

// WithLokiLabels adds stream labels.
func WithLokiLabels(labels map[string]string) LokiOption {
	return func(h *LokiHandler) {
		for k, v := range labels {
			h.sink.labels[k] = v
		}
	}
}

// WithLokiLevel sets the minimum log level.
func WithLokiLevel(level slog.Level) LokiOption {
	return func(h *LokiHandler) { h.level = level }
}

// WithLokiBatchSize sets how many records are buffered before a push.
func WithLokiBatchSize(size int) LokiOption {
	return func(h *LokiHandler) {
		if size > 0 {
			h.sink.batchSize = size
		}
	}
}

// WithLokiClient replaces the HTTP client used for pushes.
func WithLokiClient(c *http.Client) LokiOption {
	return func(h *LokiHandler) { h.sink.client = c }
}

// NewLokiHandler creates a Loki handler for a push endpoint such as
// "http://localhost:3100/loki/api/v1/push".
func NewLokiHandler(url string, opts ...LokiOption) *LokiHandler {
	h := &LokiHandler{
		sink: &lokiSink{
			url:       url,
			labels:    map[string]string{"job": "htmlshot"},
			client:    &http.Client{Timeout: 5 * time.Second},
			batchSize: 100,
		},
		level: slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(h)
	}
	s := h.sink
	s.timer = time.AfterFunc(lokiFlushInterval, func() {
		_ = s.flush()
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Reset(lokiFlushInterval)
		}
		s.mu.Unlock()
	})
	return h
}

// Enabled implements slog.Handler.
func (h *LokiHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *LokiHandler) Handle(_ context.Context, r slog.Record) error {
	line, err := h.format(r)
	if err != nil {
		return err
	}
	ts := strconv.FormatInt(r.Time.UnixNano(), 10)

	s := h.sink
	s.mu.Lock()
	s.batch = append(s.batch, [2]string{ts, line})
	full := len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if full {
		go func() { _ = s.flush() }()
	}
	return nil
}

func (h *LokiHandler) format(r slog.Record) (string, error) {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
		"time":  r.Time.Format(time.RFC3339Nano),
	}
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Any()
	}
	prefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		v := a.Value.Any()
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[prefix+a.Key] = v
		return true
	})
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode log record: %w", err)
	}
	return string(b), nil
}

// WithAttrs implements slog.Handler.
func (h *LokiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = h.attrs[:len(h.attrs):len(h.attrs)]
	prefix := h.prefix()
	for _, a := range attrs {
		c.attrs = append(c.attrs, slog.Attr{Key: prefix + a.Key, Value: a.Value})
	}
	return &c
}

// WithGroup implements slog.Handler.
func (h *LokiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(h.groups[:len(h.groups):len(h.groups)], name)
	return &c
}

// prefix qualifies attribute keys with the open groups.
func (h *LokiHandler) prefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

// Flush pushes all buffered records to Loki.
func (h *LokiHandler) Flush() error {
	return h.sink.flush()
}

// Close stops the background flush and pushes what is left.
func (h *LokiHandler) Close() error {
	s := h.sink
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.flush()
}

func (s *lokiSink) flush() error {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.batch
	s.batch = nil
	s.mu.Unlock()

	body, err := json.Marshal(lokiPush{Streams: []lokiStream{{Stream: s.labels, Values: batch}}})
	if err != nil {
		return fmt.Errorf("failed to marshal loki push: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create loki request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send logs to loki: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("loki returned status %d", resp.StatusCode)
	}
	return nil
}
