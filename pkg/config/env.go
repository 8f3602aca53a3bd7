package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Environment variable names
const (
	EnvConfig             = "HTMLSHOT_CONFIG"
	EnvHost               = "HTMLSHOT_HOST"
	EnvPort               = "HTMLSHOT_PORT"
	EnvPublicURL          = "HTMLSHOT_PUBLIC_URL"
	EnvMaxBodyBytes       = "HTMLSHOT_MAX_BODY_BYTES"
	EnvAPIKeys            = "HTMLSHOT_API_KEYS"
	EnvJWTSecret          = "HTMLSHOT_JWT_SECRET"
	EnvCORSOrigins        = "HTMLSHOT_CORS_ORIGINS"
	EnvRateLimit          = "HTMLSHOT_RATE_LIMIT"
	EnvRateBurst          = "HTMLSHOT_RATE_BURST"
	EnvRendererURL        = "HTMLSHOT_RENDERER_URL"
	EnvRendererToken      = "HTMLSHOT_RENDERER_TOKEN"
	EnvRendererTimeout    = "HTMLSHOT_RENDERER_TIMEOUT"
	EnvRendererConcurrent = "HTMLSHOT_RENDERER_CONCURRENCY"
	EnvStorageBackend     = "HTMLSHOT_STORAGE_BACKEND"
	EnvStorageRoot        = "HTMLSHOT_STORAGE_ROOT"
	EnvStoragePrefix      = "HTMLSHOT_STORAGE_PREFIX"
	EnvLogLevel           = "HTMLSHOT_LOG_LEVEL"
	EnvLogFormat          = "HTMLSHOT_LOG_FORMAT"
	EnvLokiURL            = "HTMLSHOT_LOKI_URL"
)

// Config sources.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays HTMLSHOT_* variables onto cfg. Only variables that are
// present are applied; each one is recorded in cfg.Sources. Unparseable
// values are reported together, wrapped in ErrInvalidConfig.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	e := envApplier{cfg: cfg, lookup: lookup}

	e.str(EnvHost, "server.host", &cfg.Server.Host)
	e.integer(EnvPort, "server.port", &cfg.Server.Port)
	e.str(EnvPublicURL, "server.publicUrl", &cfg.Server.PublicURL)
	e.int64(EnvMaxBodyBytes, "server.maxBodyBytes", &cfg.Server.MaxBodyBytes)

	e.list(EnvAPIKeys, "auth.apiKeys", &cfg.Auth.APIKeys)
	e.str(EnvJWTSecret, "auth.jwtSecret", &cfg.Auth.JWTSecret)
	e.list(EnvCORSOrigins, "cors.allowedOrigins", &cfg.CORS.AllowedOrigins)

	if v, ok := e.get(EnvRateLimit); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(EnvRateLimit, v)
		} else {
			cfg.RateLimit.RequestsPerSecond = rps
			cfg.RateLimit.Enabled = rps > 0
			cfg.SetSource("rateLimit.requestsPerSecond", SourceEnv)
		}
	}
	e.integer(EnvRateBurst, "rateLimit.burst", &cfg.RateLimit.Burst)

	e.str(EnvRendererURL, "renderer.url", &cfg.Renderer.URL)
	e.str(EnvRendererToken, "renderer.token", &cfg.Renderer.Token)
	if v, ok := e.get(EnvRendererTimeout); ok {
		if err := cfg.Renderer.Timeout.UnmarshalText([]byte(v)); err != nil {
			e.fail(EnvRendererTimeout, v)
		} else {
			cfg.SetSource("renderer.timeout", SourceEnv)
		}
	}
	e.integer(EnvRendererConcurrent, "renderer.maxConcurrent", &cfg.Renderer.MaxConcurrent)

	e.str(EnvStorageBackend, "storage.backend", &cfg.Storage.Backend)
	e.str(EnvStorageRoot, "storage.root", &cfg.Storage.Root)
	e.str(EnvStoragePrefix, "storage.keyPrefix", &cfg.Storage.KeyPrefix)

	e.str(EnvLogLevel, "log.level", &cfg.Log.Level)
	e.str(EnvLogFormat, "log.format", &cfg.Log.Format)
	e.str(EnvLokiURL, "log.lokiUrl", &cfg.Log.LokiURL)

	if len(e.errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(e.errs...))
	}
	return nil
}

type envApplier struct {
	cfg    *Config
	lookup LookupFunc
	errs   []error
}

func (e *envApplier) get(name string) (string, bool) {
	if e.lookup == nil {
		return "", false
	}
	v, ok := e.lookup(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envApplier) fail(name, value string) {
	e.errs = append(e.errs, fmt.Errorf("%s: cannot parse %q", name, value))
}

func (e *envApplier) str(name, field string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
		e.cfg.SetSource(field, SourceEnv)
	}
}

func (e *envApplier) integer(name, field string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, v)
			return
		}
		*dst = n
		e.cfg.SetSource(field, SourceEnv)
	}
}

func (e *envApplier) int64(name, field string, dst *int64) {
	if v, ok := e.get(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(name, v)
			return
		}
		*dst = n
		e.cfg.SetSource(field, SourceEnv)
	}
}

func (e *envApplier) list(name, field string, dst *[]string) {
	if v, ok := e.get(name); ok {
		*dst = SplitList(v)
		e.cfg.SetSource(field, SourceEnv)
	}
}

// SplitList splits a comma-separated value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
