package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/htmlshot/pkg/logging"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

// =============================================================================
// Defaults
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, int64(2<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "http://localhost:3000", cfg.Renderer.URL)
	assert.Equal(t, 30*time.Second, cfg.Renderer.Timeout.Std())
	assert.Equal(t, 4, cfg.Renderer.MaxConcurrent)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, "./data/images", cfg.Storage.Root)
	assert.Equal(t, "renders", cfg.Storage.KeyPrefix)
	assert.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.False(t, cfg.Auth.Enabled())
	assert.True(t, cfg.Storage.Enabled())
}

// =============================================================================
// File loading
// =============================================================================

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "htmlshot.yaml", `
server:
  port: 9090
  requestTimeout: 20
auth:
  apiKeys: [k1, k2]
renderer:
  url: https://chrome.internal:3000
  timeout: 1m30s
storage:
  backend: memory
log:
  level: DEBUG
  format: json
`)
	cfg, err := LoadWithEnv(p, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.RequestTimeout.Std())
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	assert.Equal(t, "https://chrome.internal:3000", cfg.Renderer.URL)
	assert.Equal(t, 90*time.Second, cfg.Renderer.Timeout.Std())
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	// Unset fields keep their defaults.
	assert.Equal(t, 4, cfg.Renderer.MaxConcurrent)
	assert.Equal(t, "renders", cfg.Storage.KeyPrefix)

	lc := cfg.Log.Logging()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, logging.FormatJSON, lc.Format)
}

func TestLoadJSON(t *testing.T) {
	p := writeFile(t, "htmlshot.json", `{"server":{"port":7070,"writeTimeout":"5s"},"renderer":{"timeout":12}}`)
	cfg, err := LoadWithEnv(p, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.WriteTimeout.Std())
	assert.Equal(t, 12*time.Second, cfg.Renderer.Timeout.Std())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
			wantErr: ErrFileNotFound,
		},
		{
			name:    "bad yaml",
			path:    func(t *testing.T) string { return writeFile(t, "c.yaml", "server: [unclosed") },
			wantErr: ErrInvalidYAML,
		},
		{
			name:    "bad json",
			path:    func(t *testing.T) string { return writeFile(t, "c.json", "{\n  \"server\": }") },
			wantErr: ErrInvalidJSON,
		},
		{
			name:    "wrong type",
			path:    func(t *testing.T) string { return writeFile(t, "c.json", `{"server":{"port":"x"}}`) },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "fails validation",
			path:    func(t *testing.T) string { return writeFile(t, "c.yaml", "storage:\n  backend: s3\n") },
			wantErr: ErrInvalidConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithEnv(tt.path(t), envMap(nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	p := writeFile(t, "htmlshot.yaml", "  \n")
	cfg, err := LoadWithEnv(p, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Find(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "htmlshot.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "htmlshot.yml"), []byte(""), 0644))
	assert.Equal(t, filepath.Join(dir, "htmlshot.yml"), Find(dir))
}

// =============================================================================
// Environment
// =============================================================================

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(cfg, envMap(map[string]string{
		EnvPort:               "9000",
		EnvAPIKeys:            " a, ,b ",
		EnvRateLimit:          "0",
		EnvRendererTimeout:    "45s",
		EnvRendererConcurrent: "8",
		EnvStorageBackend:     "none",
		EnvLogLevel:           "warn",
		EnvHost:               "   ",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.Auth.APIKeys)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Renderer.Timeout.Std())
	assert.Equal(t, 8, cfg.Renderer.MaxConcurrent)
	assert.False(t, cfg.Storage.Enabled())
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Empty(t, cfg.Server.Host, "blank variables are ignored")

	assert.Equal(t, SourceEnv, cfg.Sources["server.port"])
	assert.Equal(t, SourceEnv, cfg.Sources["renderer.timeout"])
	_, hostSet := cfg.Sources["server.host"]
	assert.False(t, hostSet)
}

func TestApplyEnvErrors(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(cfg, envMap(map[string]string{
		EnvPort:            "eighty",
		EnvRendererTimeout: "soon",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), EnvPort)
	assert.Contains(t, err.Error(), EnvRendererTimeout)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, "htmlshot.yaml", "server:\n  port: 9090\n")
	cfg, err := LoadWithEnv(p, envMap(map[string]string{EnvPort: "9191"}))
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"x"}, SplitList(" x ,"))
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.maxBodyBytes"},
		{"public url", func(c *Config) { c.Server.PublicURL = "img.example.com" }, "server.publicUrl"},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwtSecret"},
		{"blank api key", func(c *Config) { c.Auth.APIKeys = []string{" "} }, "auth.apiKeys[0]"},
		{"rate", func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }, "rateLimit.requestsPerSecond"},
		{"proxies", func(c *Config) { c.RateLimit.TrustedProxies = []string{"10.0.0.0/8", "nope"} }, "rateLimit.trustedProxies"},
		{"renderer url", func(c *Config) { c.Renderer.URL = "ws://x" }, "renderer.url"},
		{"renderer timeout", func(c *Config) { c.Renderer.Timeout = 0 }, "renderer.timeout"},
		{"renderer concurrency", func(c *Config) { c.Renderer.MaxConcurrent = 0 }, "renderer.maxConcurrent"},
		{"backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"file root", func(c *Config) { c.Storage.Root = "" }, "storage.root"},
		{"key prefix", func(c *Config) { c.Storage.KeyPrefix = "a/../b" }, "storage.keyPrefix"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateAllowsDisabledFeatures(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.RequestsPerSecond = 0
	cfg.Storage.Backend = StorageNone
	cfg.Storage.Root = ""
	cfg.Storage.KeyPrefix = ""
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Save
// =============================================================================

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.json"} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.Server.Port = 8181
			cfg.Renderer.Timeout = Duration(2 * time.Minute)
			cfg.Auth.APIKeys = []string{"secret"}
			require.NoError(t, Save(p, cfg))

			_, err := os.Stat(p + ".tmp")
			assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

			loaded, err := LoadWithEnv(p, envMap(nil))
			require.NoError(t, err)
			assert.Equal(t, 8181, loaded.Server.Port)
			assert.Equal(t, 2*time.Minute, loaded.Renderer.Timeout.Std())
			assert.Equal(t, []string{"secret"}, loaded.Auth.APIKeys)
		})
	}
}

func TestSaveNil(t *testing.T) {
	assert.Error(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil))
}
