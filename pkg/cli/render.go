package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/htmlshot/pkg/cli/internal/output"
	"github.com/getmockd/htmlshot/pkg/logging"
	"github.com/getmockd/htmlshot/pkg/render"
	"github.com/getmockd/htmlshot/pkg/template"
)

var renderFlagVals struct {
	vars        varsFlags
	css         string
	out         string
	rendererURL string
	sanitize    bool
	skipQuotes  bool
	opts        render.Options
	format      string
}

// RenderResult is the JSON output of the render command.
type RenderResult struct {
	Output      string `json:"output"`
	Size        int    `json:"size"`
	ContentType string `json:"contentType"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render a template to an image file",
	Long: `Run the full pipeline locally: substitute variables, build the HTML
document and send it to the rendering backend, then write the image.

The backend URL and token come from the configuration unless
--renderer-url is given. Missing required variables are an error.`,
	Example: `  # Render a social card to PNG
  htmlshot render card.html -f card.json -o card.png

  # JPEG at a custom size with extra CSS
  htmlshot render card.html -f card.yaml --format jpeg --width 800 --height 418 --css theme.css

  # Write image bytes to stdout
  htmlshot render card.html --set title=Hi -o - > card.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &renderFlagVals
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("renderer-url") {
			cfg.Renderer.URL = f.rendererURL
		}

		tmpl, err := readTemplate(cmd, args[0])
		if err != nil {
			return err
		}
		vars, err := f.vars.load()
		if err != nil {
			return err
		}
		if v := template.ValidateVariables(vars, template.ExtractVariables(tmpl)); !v.IsValid {
			return fmt.Errorf("%w: %s", ErrMissingVariables, strings.Join(v.Missing, ", "))
		}

		opts := f.opts
		if f.format != "" {
			format, err := render.ParseFormat(f.format)
			if err != nil {
				return err
			}
			opts.Format = format
		}
		opts = opts.Normalize()
		if err := opts.Validate(); err != nil {
			return err
		}

		engine := template.New()
		if f.sanitize {
			engine = template.New(template.WithSanitize(template.SanitizeOptions{SkipQuoteEscaping: f.skipQuotes}))
		}
		html, err := engine.Process(tmpl, vars)
		if err != nil {
			return err
		}

		var css string
		if f.css != "" {
			data, err := os.ReadFile(f.css)
			if err != nil {
				return fmt.Errorf("failed to read css: %w", err)
			}
			css = string(data)
		}
		doc, err := render.BuildDocument(html, css)
		if err != nil {
			return err
		}

		renderer, err := newRenderer(cfg.Renderer, logging.New(cfg.Log.Logging()), nil)
		if err != nil {
			return err
		}
		img, err := renderer.Render(cmd.Context(), doc, opts)
		if err != nil {
			return err
		}

		dest := f.out
		if dest == "" {
			dest = "out." + opts.Extension()
		}
		if dest == "-" {
			_, err = cmd.OutOrStdout().Write(img)
			return err
		}
		if err := os.WriteFile(dest, img, 0o644); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}

		res := RenderResult{
			Output:      dest,
			Size:        len(img),
			ContentType: opts.ContentType(),
			Width:       opts.Width,
			Height:      opts.Height,
		}
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes, %dx%d %s)\n", res.Output, res.Size, res.Width, res.Height, res.ContentType)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	f := &renderFlagVals
	f.vars.register(renderCmd)
	renderCmd.Flags().StringVar(&f.css, "css", "", "CSS file appended to the document head")
	renderCmd.Flags().StringVarP(&f.out, "output", "o", "", "Output file, or - for stdout (default: out.<ext>)")
	renderCmd.Flags().StringVar(&f.rendererURL, "renderer-url", "", "Rendering backend base URL (overrides config)")
	renderCmd.Flags().BoolVar(&f.sanitize, "sanitize", false, "HTML-escape string values before substitution")
	renderCmd.Flags().BoolVar(&f.skipQuotes, "skip-quotes", false, "With --sanitize, leave quote characters unescaped")
	renderCmd.Flags().StringVar(&f.format, "format", "", "Image format (png, jpeg, webp)")
	renderCmd.Flags().IntVar(&f.opts.Width, "width", render.DefaultWidth, "Viewport width in CSS pixels")
	renderCmd.Flags().IntVar(&f.opts.Height, "height", render.DefaultHeight, "Viewport height in CSS pixels")
	renderCmd.Flags().Float64Var(&f.opts.DeviceScaleFactor, "scale", render.DefaultScale, "Device scale factor")
	renderCmd.Flags().IntVar(&f.opts.Quality, "quality", 0, "JPEG/WebP quality 1-100 (default 80)")
	renderCmd.Flags().BoolVar(&f.opts.FullPage, "full-page", false, "Capture the full scrollable page")
	renderCmd.Flags().BoolVar(&f.opts.Transparent, "transparent", false, "Transparent background (png, webp)")
}
