package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getmockd/htmlshot/pkg/logging"
	"github.com/getmockd/htmlshot/pkg/metrics"
	"github.com/getmockd/htmlshot/pkg/ratelimit"
)

// Renderer turns an HTML document into image bytes.
type Renderer interface {
	Render(ctx context.Context, html string, opts Options) ([]byte, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, html string, opts Options) ([]byte, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, html string, opts Options) ([]byte, error) {
	return f(ctx, html, opts)
}

const (
	// MaxImageBytes caps the size of an image read from the backend.
	MaxImageBytes = 32 << 20
	maxErrorBody  = 512
)

// HTTPConfig configures an HTTPRenderer.
type HTTPConfig struct {
	// BaseURL of a browserless-compatible service, e.g. http://localhost:3000.
	BaseURL string
	// Token is sent as the token query parameter when set.
	Token string
	// Timeout bounds each render. Zero means no timeout beyond ctx.
	Timeout time.Duration
	// MaxConcurrent bounds the renders in flight. Defaults to 4.
	MaxConcurrent int
	// RequestsPerSecond paces calls to the backend. Zero disables pacing.
	RequestsPerSecond float64

	Client  *http.Client
	Logger  *slog.Logger
	Metrics *metrics.Service
}

// HTTPRenderer calls a browserless-compatible /screenshot endpoint.
type HTTPRenderer struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	sem      chan struct{}
	pace     *ratelimit.Bucket
	log      *slog.Logger
	metrics  *metrics.Service
}

var _ Renderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer validates cfg and returns a renderer.
func NewHTTPRenderer(cfg HTTPConfig) (*HTTPRenderer, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid renderer base URL %q", cfg.BaseURL)
	}
	endpoint := base.JoinPath("screenshot")
	if cfg.Token != "" {
		q := endpoint.Query()
		q.Set("token", cfg.Token)
		endpoint.RawQuery = q.Encode()
	}

	n := cfg.MaxConcurrent
	if n <= 0 {
		n = 4
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	r := &HTTPRenderer{
		endpoint: endpoint.String(),
		timeout:  cfg.Timeout,
		client:   client,
		sem:      make(chan struct{}, n),
		log:      logging.OrNop(cfg.Logger),
		metrics:  cfg.Metrics,
	}
	if cfg.RequestsPerSecond > 0 {
		r.pace = ratelimit.NewBucket(cfg.RequestsPerSecond, n)
	}
	return r, nil
}

type screenshotRequest struct {
	HTML     string            `json:"html"`
	Options  screenshotOptions `json:"options"`
	Viewport viewport          `json:"viewport"`
}

type screenshotOptions struct {
	Type           Format `json:"type"`
	Quality        int    `json:"quality,omitempty"`
	FullPage       bool   `json:"fullPage"`
	OmitBackground bool   `json:"omitBackground"`
}

type viewport struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor"`
}

// Render sends html to the backend and returns the image bytes. Options are
// normalised and validated first. Failures from the backend are *Error.
func (r *HTTPRenderer) Render(ctx context.Context, html string, opts Options) ([]byte, error) {
	opts = opts.Normalize()
	if err := opts.Validate(); err != nil {
		r.metrics.ObserveRender(string(opts.Format), metrics.OutcomeInvalid, 0)
		return nil, err
	}

	body, err := json.Marshal(screenshotRequest{
		HTML: html,
		Options: screenshotOptions{
			Type:           opts.Format,
			Quality:        opts.Quality,
			FullPage:       opts.FullPage,
			OmitBackground: opts.Transparent,
		},
		Viewport: viewport{
			Width:             opts.Width,
			Height:            opts.Height,
			DeviceScaleFactor: opts.DeviceScaleFactor,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode render request: %w", err)
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.pace != nil {
		if err := r.pace.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := r.metrics.RenderStarted()
	start := time.Now()
	img, err := r.do(ctx, body)
	done()
	elapsed := time.Since(start)

	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
	case err != nil:
		outcome = metrics.OutcomeError
	}
	r.metrics.ObserveRender(string(opts.Format), outcome, elapsed)

	if err != nil {
		r.log.Warn("render failed", "format", opts.Format, "duration", elapsed, "error", err)
		return nil, err
	}
	r.log.Debug("render complete", "format", opts.Format, "bytes", len(img), "duration", elapsed)
	return img, nil
}

func (r *HTTPRenderer) do(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/*")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Err: err}
	}
	switch {
	case len(img) == 0:
		return nil, &Error{StatusCode: resp.StatusCode, Err: ErrEmptyImage}
	case len(img) > MaxImageBytes:
		return nil, &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("image exceeds %d bytes", MaxImageBytes)}
	}
	return img, nil
}
