package config

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/htmlshot/pkg/logging"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageNone   = "none"
)

// Config is the complete htmlshot service configuration.
//
// Values are resolved with the following precedence:
//  1. Command-line flags (highest priority)
//  2. HTMLSHOT_* environment variables
//  3. Config file (YAML or JSON)
//  4. Default values (lowest priority)
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	CORS      CORSConfig      `json:"cors" yaml:"cors"`
	RateLimit RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`
	Renderer  RendererConfig  `json:"renderer" yaml:"renderer"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Log       LogConfig       `json:"log" yaml:"log"`

	// Sources tracks which settings came from the environment or flags.
	Sources map[string]string `json:"-" yaml:"-"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	// ReadTimeout and WriteTimeout bound a single connection.
	ReadTimeout  Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout Duration `json:"writeTimeout" yaml:"writeTimeout"`
	// RequestTimeout is the deadline applied to each API request.
	RequestTimeout  Duration `json:"requestTimeout" yaml:"requestTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `json:"maxBodyBytes" yaml:"maxBodyBytes"`
	// MaxConnections caps concurrent connections; 0 means unlimited.
	MaxConnections int `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`
	// PublicURL is the externally visible base URL used in image links.
	PublicURL string `json:"publicUrl,omitempty" yaml:"publicUrl,omitempty"`
}

// AuthConfig configures API authentication. Auth is off when neither API
// keys nor a JWT secret are set.
type AuthConfig struct {
	APIKeys   []string `json:"apiKeys,omitempty" yaml:"apiKeys,omitempty"`
	JWTSecret string   `json:"jwtSecret,omitempty" yaml:"jwtSecret,omitempty"`
	JWTIssuer string   `json:"jwtIssuer,omitempty" yaml:"jwtIssuer,omitempty"`
}

// Enabled reports whether any credential is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0 || a.JWTSecret != ""
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
	MaxAge         int      `json:"maxAge,omitempty" yaml:"maxAge,omitempty"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	RequestsPerSecond float64  `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int      `json:"burst" yaml:"burst"`
	TrustedProxies    []string `json:"trustedProxies,omitempty" yaml:"trustedProxies,omitempty"`
}

// RendererConfig points at the headless browser backend.
type RendererConfig struct {
	URL           string   `json:"url" yaml:"url"`
	Token         string   `json:"token,omitempty" yaml:"token,omitempty"`
	Timeout       Duration `json:"timeout" yaml:"timeout"`
	MaxConcurrent int      `json:"maxConcurrent" yaml:"maxConcurrent"`
	// RequestsPerSecond paces calls to the backend; 0 disables pacing.
	RequestsPerSecond float64 `json:"requestsPerSecond,omitempty" yaml:"requestsPerSecond,omitempty"`
}

// StorageConfig selects where rendered images are kept.
type StorageConfig struct {
	Backend   string `json:"backend" yaml:"backend"`
	Root      string `json:"root,omitempty" yaml:"root,omitempty"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// Enabled reports whether rendered images can be stored.
func (s StorageConfig) Enabled() bool {
	return s.Backend != StorageNone && s.Backend != ""
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `json:"level" yaml:"level"`
	Format  string `json:"format" yaml:"format"`
	LokiURL string `json:"lokiUrl,omitempty" yaml:"lokiUrl,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			RequestTimeout:  Duration(45 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			MaxBodyBytes:    2 << 20,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Renderer: RendererConfig{
			URL:           "http://localhost:3000",
			Timeout:       Duration(30 * time.Second),
			MaxConcurrent: 4,
		},
		Storage: StorageConfig{
			Backend:   StorageFile,
			Root:      "./data/images",
			KeyPrefix: "renders",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sources: make(map[string]string),
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Logging converts the log section to a logging.Config writing to stderr.
func (l LogConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(l.Level)
	cfg.Format = logging.ParseFormat(l.Format)
	cfg.LokiURL = l.LokiURL
	return cfg
}

// SetSource records where a setting came from.
func (c *Config) SetSource(field, source string) {
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	c.Sources[field] = source
}

// Duration is a time.Duration written as a Go duration string ("30s") in
// YAML and JSON.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. A bare integer is read
// as seconds.
func (d *Duration) UnmarshalText(b []byte) error {
	s := string(b)
	if n, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("invalid duration %s", b)
		}
		s = n.String()
	}
	return d.UnmarshalText([]byte(s))
}
