package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	configPath string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "htmlshot",
	Short: "htmlshot renders HTML templates to images",
	Long: `htmlshot fills HTML templates with JSON variables and turns the result
into PNG, JPEG or WebP images through a headless browser service.

Run 'htmlshot serve' for the HTTP API, or use the template commands
(process, vars, validate, render) directly from the shell.

Configuration can be provided via flags, HTMLSHOT_* environment variables,
or a configuration file. By default htmlshot looks for htmlshot.yaml in the
current directory.`,
	SilenceUsage:  true,
	SilenceErrors: true, // errors are printed by Main
}

// exitError carries a process exit code without an extra message.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Main runs the CLI with os.Args and returns the process exit code.
func Main() int {
	return run(os.Args[1:])
}

func run(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: $HTMLSHOT_CONFIG or ./htmlshot.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}
