package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/htmlshot/pkg/api"
	"github.com/getmockd/htmlshot/pkg/config"
	"github.com/getmockd/htmlshot/pkg/logging"
	"github.com/getmockd/htmlshot/pkg/metrics"
	"github.com/getmockd/htmlshot/pkg/render"
	"github.com/getmockd/htmlshot/pkg/storage"
)

// serveFlags holds the flags that override the loaded configuration.
type serveFlags struct {
	host           string
	port           int
	publicURL      string
	maxConnections int
	rendererURL    string
	rendererToken  string
	storageBackend string
	storageRoot    string
	logLevel       string
	logFormat      string
	noRateLimit    bool
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (foreground)",
	Long: `Start the htmlshot HTTP API in the foreground.

Settings come from, in increasing priority: defaults, the config file,
HTMLSHOT_* environment variables and these flags. The server stops
gracefully on SIGINT or SIGTERM, waiting up to server.shutdownTimeout for
in-flight renders.`,
	Example: `  # Start with defaults (port 8080, renderer at http://localhost:3000)
  htmlshot serve

  # Point at a browserless instance and keep images in memory
  htmlshot serve --renderer-url http://browserless:3000 --storage memory

  # Use a config file and JSON logs
  htmlshot serve -c htmlshot.yaml --log-format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := serveFlagVals.apply(cmd, cfg); err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

// apply copies explicitly set flags onto cfg and revalidates it.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	set := func(name, field string, fn func()) {
		if flags.Changed(name) {
			fn()
			cfg.SetSource(field, config.SourceFlag)
		}
	}
	set("host", "server.host", func() { cfg.Server.Host = f.host })
	set("port", "server.port", func() { cfg.Server.Port = f.port })
	set("public-url", "server.publicUrl", func() { cfg.Server.PublicURL = f.publicURL })
	set("max-connections", "server.maxConnections", func() { cfg.Server.MaxConnections = f.maxConnections })
	set("renderer-url", "renderer.url", func() { cfg.Renderer.URL = f.rendererURL })
	set("renderer-token", "renderer.token", func() { cfg.Renderer.Token = f.rendererToken })
	set("storage", "storage.backend", func() { cfg.Storage.Backend = f.storageBackend })
	set("storage-root", "storage.root", func() { cfg.Storage.Root = f.storageRoot })
	set("log-level", "log.level", func() { cfg.Log.Level = f.logLevel })
	set("log-format", "log.format", func() { cfg.Log.Format = f.logFormat })
	set("no-rate-limit", "rateLimit.enabled", func() { cfg.RateLimit.Enabled = !f.noRateLimit })
	return cfg.Validate()
}

// openStore builds the configured object store; nil when storage is off.
func openStore(cfg config.StorageConfig, log *slog.Logger) (storage.ObjectStore, error) {
	switch cfg.Backend {
	case config.StorageFile:
		return storage.NewFileStore(cfg.Root, log)
	case config.StorageMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, nil
	}
}

// newRenderer builds the HTTP rendering backend client from cfg.
func newRenderer(cfg config.RendererConfig, log *slog.Logger, m *metrics.Service) (*render.HTTPRenderer, error) {
	return render.NewHTTPRenderer(render.HTTPConfig{
		BaseURL:           cfg.URL,
		Token:             cfg.Token,
		Timeout:           cfg.Timeout.Std(),
		MaxConcurrent:     cfg.MaxConcurrent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            log,
		Metrics:           m,
	})
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log, closeLog := logging.Setup(cfg.Log.Logging())
	defer func() { _ = closeLog() }()

	m := metrics.NewService()

	store, err := openStore(cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	renderer, err := newRenderer(cfg.Renderer, log, m)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	srv, err := api.NewServer(api.Options{
		Config:   cfg,
		Renderer: renderer,
		Store:    store,
		Logger:   log,
		Metrics:  m,
		Version:  Version,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	log.Info("htmlshot listening",
		"addr", srv.Addr(),
		"renderer", cfg.Renderer.URL,
		"storage", cfg.Storage.Backend,
		"auth", cfg.Auth.Enabled(),
		"version", Version,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func (f *serveFlags) register(cmd *cobra.Command) {
	def := config.Default()
	flags := cmd.Flags()
	flags.StringVar(&f.host, "host", def.Server.Host, "Listen host (empty for all interfaces)")
	flags.IntVarP(&f.port, "port", "p", def.Server.Port, "HTTP server port")
	flags.StringVar(&f.publicURL, "public-url", "", "Externally visible base URL for image links")
	flags.IntVar(&f.maxConnections, "max-connections", 0, "Maximum concurrent HTTP connections (0 = unlimited)")
	flags.StringVar(&f.rendererURL, "renderer-url", def.Renderer.URL, "Rendering backend base URL")
	flags.StringVar(&f.rendererToken, "renderer-token", "", "Rendering backend token")
	flags.StringVar(&f.storageBackend, "storage", def.Storage.Backend, "Image storage backend (file, memory, none)")
	flags.StringVar(&f.storageRoot, "storage-root", def.Storage.Root, "Directory for the file storage backend")
	flags.StringVar(&f.logLevel, "log-level", def.Log.Level, "Log level (debug, info, warn, error)")
	flags.StringVar(&f.logFormat, "log-format", def.Log.Format, "Log format (text, json)")
	flags.BoolVar(&f.noRateLimit, "no-rate-limit", false, "Disable per-client rate limiting")
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlagVals.register(serveCmd)
}
