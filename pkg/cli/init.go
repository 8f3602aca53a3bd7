package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/getmockd/htmlshot/pkg/config"
)

var initFlagVals struct {
	force       bool
	output      string
	interactive bool
	port        int
	rendererURL string
	storage     string
	apiKey      bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter config file",
	Long: `Create a starter htmlshot configuration file.

Run without flags in a terminal to be asked for the main settings. The
file format (YAML or JSON) follows the output file extension.`,
	Example: `  # Interactive setup
  htmlshot init

  # Non-interactive, memory storage and a generated API key
  htmlshot init --storage memory --api-key

  # JSON config with a custom name
  htmlshot init -o deploy/htmlshot.json --port 9000

  # Overwrite an existing config
  htmlshot init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &initFlagVals
		if _, err := os.Stat(f.output); err == nil && !f.force {
			return fmt.Errorf("%w: %s", ErrConfigExists, f.output)
		}

		cfg := config.Default()
		cfg.Sources = nil
		if f.interactive || (cmd.Flags().NFlag() == 0 && isatty.IsTerminal(os.Stdin.Fd())) {
			if err := runInitForm(cfg); err != nil {
				return err
			}
		} else {
			cfg.Server.Port = f.port
			cfg.Renderer.URL = f.rendererURL
			cfg.Storage.Backend = f.storage
			if f.storage != config.StorageFile {
				cfg.Storage.Root = ""
			}
			if f.apiKey {
				cfg.Auth.APIKeys = []string{newAPIKey()}
			}
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(f.output, cfg); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %s\n", f.output)
		if len(cfg.Auth.APIKeys) > 0 {
			fmt.Fprintf(out, "API key: %s\n", cfg.Auth.APIKeys[0])
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintf(out, "  htmlshot serve --config %s\n", f.output)
		fmt.Fprintf(out, "  curl http://localhost:%d/health\n", cfg.Server.Port)
		return nil
	},
}

// runInitForm asks for the main settings and writes them into cfg.
func runInitForm(cfg *config.Config) error {
	port := strconv.Itoa(cfg.Server.Port)
	rendererURL := cfg.Renderer.URL
	backend := cfg.Storage.Backend
	root := cfg.Storage.Root
	withKey := false

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Which port should the API listen on?").
				Value(&port).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 || n > 65535 {
						return errors.New("port must be between 1 and 65535")
					}
					return nil
				}),
			huh.NewInput().
				Title("Rendering backend URL").
				Placeholder("http://localhost:3000").
				Value(&rendererURL).
				Validate(func(s string) error {
					if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
						return errors.New("URL must start with http:// or https://")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Where should rendered images be stored?").
				Options(
					huh.NewOption("Files on disk", config.StorageFile),
					huh.NewOption("Memory (lost on restart)", config.StorageMemory),
					huh.NewOption("Nowhere (return image bytes)", config.StorageNone),
				).
				Value(&backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Image directory").
				Value(&root),
		).WithHideFunc(func() bool { return backend != config.StorageFile }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Require an API key?").
				Value(&withKey),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Server.Port, _ = strconv.Atoi(port)
	cfg.Renderer.URL = strings.TrimSpace(rendererURL)
	cfg.Storage.Backend = backend
	cfg.Storage.Root = ""
	if backend == config.StorageFile {
		cfg.Storage.Root = strings.TrimSpace(root)
	}
	if withKey {
		cfg.Auth.APIKeys = []string{newAPIKey()}
	}
	return nil
}

func newAPIKey() string {
	return "hs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func init() {
	rootCmd.AddCommand(initCmd)

	f := &initFlagVals
	def := config.Default()
	initCmd.Flags().BoolVar(&f.force, "force", false, "Overwrite existing config file")
	initCmd.Flags().StringVarP(&f.output, "output", "o", config.DefaultFileNames[0], "Output filename (.yaml, .yml or .json)")
	initCmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "Ask for settings even when flags are given")
	initCmd.Flags().IntVar(&f.port, "port", def.Server.Port, "HTTP server port")
	initCmd.Flags().StringVar(&f.rendererURL, "renderer-url", def.Renderer.URL, "Rendering backend base URL")
	initCmd.Flags().StringVar(&f.storage, "storage", def.Storage.Backend, "Image storage backend (file, memory, none)")
	initCmd.Flags().BoolVar(&f.apiKey, "api-key", false, "Generate an API key")
}
