package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/getmockd/htmlshot/pkg/ratelimit"
	"github.com/getmockd/htmlshot/pkg/storage"
)

// ValidationError describes a single invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match any validation failure with ErrInvalidConfig.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// validStorageBackends are the allowed storage backends.
var validStorageBackends = map[string]bool{
	StorageFile:   true,
	StorageMemory: true,
	StorageNone:   true,
}

// validLogLevels are the allowed log levels.
var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	s := c.Server
	if s.Port < 0 || s.Port > 65535 {
		add("server.port", "must be between 0 and 65535, got %d", s.Port)
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.RequestTimeout < 0 || s.ShutdownTimeout < 0 {
		add("server", "timeouts cannot be negative")
	}
	if s.MaxBodyBytes <= 0 {
		add("server.maxBodyBytes", "must be positive")
	}
	if s.MaxConnections < 0 {
		add("server.maxConnections", "cannot be negative")
	}
	if s.PublicURL != "" {
		if err := checkHTTPURL(s.PublicURL); err != nil {
			add("server.publicUrl", "%v", err)
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		add("auth.jwtSecret", "must be at least 16 bytes")
	}
	for i, k := range c.Auth.APIKeys {
		if strings.TrimSpace(k) == "" {
			add(fmt.Sprintf("auth.apiKeys[%d]", i), "cannot be empty")
		}
	}

	if c.CORS.MaxAge < 0 {
		add("cors.maxAge", "cannot be negative")
	}

	r := c.RateLimit
	if r.Enabled {
		if r.RequestsPerSecond <= 0 {
			add("rateLimit.requestsPerSecond", "must be positive when rate limiting is enabled")
		}
		if r.Burst < 0 {
			add("rateLimit.burst", "cannot be negative")
		}
	}
	if got := len(ratelimit.ParseTrustedProxies(r.TrustedProxies)); got != len(r.TrustedProxies) {
		add("rateLimit.trustedProxies", "%d of %d entries are not IPs or CIDRs", len(r.TrustedProxies)-got, len(r.TrustedProxies))
	}

	if err := checkHTTPURL(c.Renderer.URL); err != nil {
		add("renderer.url", "%v", err)
	}
	if c.Renderer.Timeout <= 0 {
		add("renderer.timeout", "must be positive")
	}
	if c.Renderer.MaxConcurrent < 1 {
		add("renderer.maxConcurrent", "must be at least 1")
	}
	if c.Renderer.RequestsPerSecond < 0 {
		add("renderer.requestsPerSecond", "cannot be negative")
	}

	if !validStorageBackends[c.Storage.Backend] {
		add("storage.backend", "must be one of file, memory, none; got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == StorageFile && c.Storage.Root == "" {
		add("storage.root", "is required for the file backend")
	}
	if p := strings.Trim(c.Storage.KeyPrefix, "/"); p != "" {
		if err := storage.ValidateKey(p); err != nil {
			add("storage.keyPrefix", "%v", err)
		}
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "must be debug, info, warn or error; got %q", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		add("log.format", "must be text or json; got %q", c.Log.Format)
	}
	if c.Log.LokiURL != "" {
		if err := checkHTTPURL(c.Log.LokiURL); err != nil {
			add("log.lokiUrl", "%v", err)
		}
	}

	return errors.Join(errs...)
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host: %q", raw)
	}
	return nil
}
