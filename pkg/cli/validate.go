package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/htmlshot/pkg/cli/internal/output"
	"github.com/getmockd/htmlshot/pkg/template"
)

var validateVars varsFlags

var validateCmd = &cobra.Command{
	Use:   "validate [template]",
	Short: "Check variables against a template, or check the config file",
	Long: `Check that a variables file supplies every variable a template requires.
Exits with status 1 when variables are missing.

Without a template argument, the configuration (file, HTMLSHOT_* environment
and defaults) is loaded and validated instead, without starting anything.`,
	Example: `  # Check variables for a template
  htmlshot validate card.html -f card.json

  # Check the configuration in the current directory
  htmlshot validate

  # Check a specific config file
  htmlshot validate -c deploy/htmlshot.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return validateConfig(cmd)
		}

		tmpl, err := readTemplate(cmd, args[0])
		if err != nil {
			return err
		}
		vars, err := validateVars.load()
		if err != nil {
			return err
		}
		res := template.ValidateVariables(vars, template.ExtractVariables(tmpl))

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := output.JSON(out, res); err != nil {
				return err
			}
		} else if res.IsValid {
			fmt.Fprintf(out, "OK: %d required, %d provided\n", len(res.Required), len(res.Provided))
		} else {
			fmt.Fprintf(out, "Missing: %s\n", strings.Join(res.Missing, ", "))
		}
		if !res.IsValid {
			return &exitError{code: 1}
		}
		return nil
	},
}

func validateConfig(cmd *cobra.Command) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if jsonOutput {
		return output.JSON(cmd.OutOrStdout(), map[string]any{"valid": true, "file": path, "sources": cfg.Sources})
	}
	if path == "" {
		path = "(defaults)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %s\n", path)
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateVars.register(validateCmd)
}
