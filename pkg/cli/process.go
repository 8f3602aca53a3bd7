package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/htmlshot/pkg/cli/internal/output"
	"github.com/getmockd/htmlshot/pkg/template"
)

var (
	processVars      varsFlags
	processSanitize  bool
	processSkipQuote bool
	processStrict    bool
)

var processCmd = &cobra.Command{
	Use:   "process <template>",
	Short: "Substitute variables into a template and print the HTML",
	Long: `Substitute variables into a template and print the resulting HTML.

The template is read from a file, or from stdin when the argument is "-".
Placeholders with no matching variable are left as written. Malformed
markers are kept as literal text and reported on stderr.`,
	Example: `  # Fill a template from a JSON file
  htmlshot process card.html -f card.json

  # Escape HTML in values and set one variable inline
  htmlshot process card.html -f card.yaml --sanitize --set title="Hello"

  # Read the template from stdin
  echo 'Hi {{name}}' | htmlshot process - --set name=Ana`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := readTemplate(cmd, args[0])
		if err != nil {
			return err
		}
		vars, err := processVars.load()
		if err != nil {
			return err
		}

		if processStrict {
			v := template.ValidateVariables(vars, template.ExtractVariables(tmpl))
			if !v.IsValid {
				return fmt.Errorf("%w: %s", ErrMissingVariables, strings.Join(v.Missing, ", "))
			}
		}

		engine := template.New()
		if processSanitize {
			engine = template.New(template.WithSanitize(template.SanitizeOptions{SkipQuoteEscaping: processSkipQuote}))
		}
		res, err := engine.ProcessDetailed(tmpl, vars)
		if err != nil {
			return err
		}

		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), res)
		}
		for _, issue := range res.Issues {
			output.Warn(cmd.ErrOrStderr(), "offset %d: %s %s", issue.Pos, issue.Marker, issue.Message)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), res.HTML)
		return err
	},
}

var varsCmd = &cobra.Command{
	Use:   "vars <template>",
	Short: "List the variables a template requires",
	Long: `List the top-level variable names a template requires, iteration block
names first, then placeholders and conditional guards in document order.
Names used only inside an iteration body are shown per block.`,
	Example: `  htmlshot vars card.html
  htmlshot vars card.html --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := readTemplate(cmd, args[0])
		if err != nil {
			return err
		}
		a := template.Analyze(tmpl)
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), a)
		}

		out := cmd.OutOrStdout()
		for _, name := range a.Required {
			if scoped := a.Scoped[name]; len(scoped) > 0 {
				fmt.Fprintf(out, "%s (each: %s)\n", name, strings.Join(scoped, ", "))
				continue
			}
			fmt.Fprintln(out, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	processVars.register(processCmd)
	processCmd.Flags().BoolVar(&processSanitize, "sanitize", false, "HTML-escape string values before substitution")
	processCmd.Flags().BoolVar(&processSkipQuote, "skip-quotes", false, "With --sanitize, leave quote characters unescaped")
	processCmd.Flags().BoolVar(&processStrict, "strict", false, "Fail when required variables are missing")

	rootCmd.AddCommand(varsCmd)
}
