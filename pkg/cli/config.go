package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/htmlshot/pkg/cli/internal/output"
	"github.com/getmockd/htmlshot/pkg/config"
)

// resolveConfigPath picks the config file: --config, then HTMLSHOT_CONFIG,
// then a default file name in the working directory.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv(config.EnvConfig); p != "" {
		return p
	}
	return config.Find(".")
}

// loadConfig loads and validates the configuration, returning the file it
// came from ("" for defaults only).
func loadConfig() (*config.Config, string, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	Long: `Show the configuration htmlshot would run with after merging defaults,
the config file and HTMLSHOT_* environment variables, and where each
overridden setting came from. Secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		masked := *cfg
		if len(cfg.Auth.APIKeys) > 0 {
			masked.Auth.APIKeys = make([]string, len(cfg.Auth.APIKeys))
			for i := range masked.Auth.APIKeys {
				masked.Auth.APIKeys[i] = "****"
			}
		}
		if cfg.Auth.JWTSecret != "" {
			masked.Auth.JWTSecret = "****"
		}
		if cfg.Renderer.Token != "" {
			masked.Renderer.Token = "****"
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return output.JSON(out, map[string]any{"file": path, "config": masked, "sources": cfg.Sources})
		}

		if path == "" {
			path = "(none)"
		}
		fmt.Fprintf(out, "# file: %s\n", path)
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(&masked); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}

		if len(cfg.Sources) == 0 {
			return nil
		}
		fields := make([]string, 0, len(cfg.Sources))
		for f := range cfg.Sources {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		fmt.Fprintln(out, "\n# sources")
		tw := output.Table(out)
		for _, f := range fields {
			fmt.Fprintf(tw, "# %s\t%s\n", f, cfg.Sources[f])
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
