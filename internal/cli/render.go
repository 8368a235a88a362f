package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	treeio "github.com/matzehuels/tracktree/pkg/io"
	"github.com/matzehuels/tracktree/pkg/pipeline"
	"github.com/matzehuels/tracktree/pkg/render"
	"github.com/matzehuels/tracktree/pkg/tree"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output     string   // output file path (or base path for multiple formats)
	formats    []string // output formats: "svg", "png", "dot"
	legend     bool     // include a tag category legend in SVG output
	noLabels   bool     // suppress connector tag labels
	detailed   bool     // include depth and full tags in DOT edge labels
	nodeRadius float64  // node circle radius in SVG output
}

// renderCommand creates the render command for generating visualizations
// from a saved tree.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	opts := renderOpts{}

	cmd := &cobra.Command{
		Use:   "render [tree.json]",
		Short: "Render a saved tree to SVG, PNG, or DOT",
		Long: `Render a saved tree to SVG, PNG, or DOT.

The render command takes a tree.json file (produced by 'grow --format json')
and renders it without re-running growth. Positions stored in the file are
used as-is, so the output matches the original run exactly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			for _, f := range opts.formats {
				if f == pipeline.FormatJSON {
					return fmt.Errorf("invalid format: json (input is already json)")
				}
				if err := pipeline.ValidateFormat(f); err != nil {
					return err
				}
			}
			return c.runRender(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, dot (comma-separated)")
	cmd.Flags().BoolVar(&opts.legend, "legend", false, "include a tag category legend in SVG output")
	cmd.Flags().BoolVar(&opts.noLabels, "no-labels", false, "suppress connector tag labels")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include depth and full tags in DOT output")
	cmd.Flags().Float64Var(&opts.nodeRadius, "node-radius", 0, "node circle radius in SVG output")

	return cmd
}

// runRender loads the tree and renders it to the requested formats.
func (c *CLI) runRender(cmd *cobra.Command, input string, opts renderOpts) error {
	logger := loggerFromContext(cmd.Context())
	logger.Infof("Rendering %s", input)

	t, err := treeio.ReadFile(input)
	if err != nil {
		return fmt.Errorf("load tree %s: %w", input, err)
	}
	logger.Infof("Loaded tree: %d nodes, %d connections", t.NodeCount(), t.ConnectionCount())

	artifacts := make(map[string][]byte, len(opts.formats))
	for _, format := range opts.formats {
		data, err := renderTree(t, format, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", format, err)
		}
		logger.Debugf("Generated %s: %d bytes", format, len(data))
		artifacts[format] = data
	}

	return writeArtifacts(artifactWriteParams{
		artifacts: artifacts,
		formats:   opts.formats,
		input:     strings.TrimSuffix(input, filepath.Ext(input)),
		output:    opts.output,
	})
}

// renderTree dispatches to the appropriate renderer based on format.
func renderTree(t *tree.Tree, format string, opts renderOpts) ([]byte, error) {
	switch format {
	case pipeline.FormatSVG:
		var svgOpts []render.SVGOption
		if opts.nodeRadius > 0 {
			svgOpts = append(svgOpts, render.WithNodeRadius(opts.nodeRadius))
		}
		if opts.legend {
			svgOpts = append(svgOpts, render.WithLegend())
		}
		if opts.noLabels {
			svgOpts = append(svgOpts, render.WithoutLabels())
		}
		return render.RenderSVG(t, svgOpts...), nil
	case pipeline.FormatDOT:
		return []byte(render.ToDOT(t, render.DotOptions{Detailed: opts.detailed})), nil
	case pipeline.FormatPNG:
		return render.RenderDOTPNG(render.ToDOT(t, render.DotOptions{Detailed: opts.detailed}))
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// nopCloser wraps an io.Writer with a no-op Close method.
// It is used to make os.Stdout compatible with io.WriteCloser.
type nopCloser struct{ io.Writer }

// Close implements io.Closer with a no-op.
func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is "-", it returns os.Stdout wrapped in nopCloser.
// Otherwise, it creates the file at path, overwriting if it exists.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
