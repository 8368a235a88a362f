package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tracktree/pkg/pipeline"
	"github.com/matzehuels/tracktree/pkg/track"
)

// growOpts holds the command-line flags for the grow command.
type growOpts struct {
	configPath   string // TOML config file path
	album        string // optional album for the seed track
	library      string // JSON library file (overrides config)
	mongoURI     string // MongoDB connection URI (overrides config)
	maxLevels    int    // deepest generation level
	tagsPerLevel string // comma-separated tag counts per level
	branches     int    // branches per tag
	seed         uint64 // random seed for candidate shuffling
	drop         string // "x,y" drop position for the root node
	formatsStr   string // comma-separated output formats
	output       string // output file or base path
	legend       bool   // include a tag category legend in SVG output
	noLabels     bool   // suppress connector tag labels
	noCache      bool   // disable caching
	refresh      bool   // regrow even when a cached tree exists
}

// growCommand creates the grow command for expanding a tree from a seed
// track and rendering the result.
func (c *CLI) growCommand() *cobra.Command {
	var opts growOpts

	cmd := &cobra.Command{
		Use:   "grow TITLE ARTIST",
		Short: "Grow a tag-connected tree from a seed track",
		Long: `Grow a tag-connected tree from a seed track.

The grow command looks up the seed track's tags, fetches related tracks
from the catalog for the most descriptive tag categories, and expands the
tree level by level. The result is laid out radially and rendered to the
requested formats.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGrow(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "TOML config file (default: tracktree.toml)")
	cmd.Flags().StringVar(&opts.album, "album", "", "album of the seed track")
	cmd.Flags().StringVar(&opts.library, "library", "", "JSON library file with the track catalog")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo-uri", "", "MongoDB connection URI for the track catalog")
	cmd.Flags().IntVar(&opts.maxLevels, "max-levels", 0, "deepest generation level (default 2)")
	cmd.Flags().StringVar(&opts.tagsPerLevel, "tags-per-level", "", "tags to expand per level, comma-separated (e.g. 3,2)")
	cmd.Flags().IntVar(&opts.branches, "branches-per-tag", 0, "tracks to attach per expanded tag (default 1)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed for reproducible growth")
	cmd.Flags().StringVar(&opts.drop, "drop", "", "root drop position as x,y (default: layout center)")
	cmd.Flags().StringVarP(&opts.formatsStr, "format", "f", "", "output format(s): svg (default), png, dot, json (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&opts.legend, "legend", false, "include a tag category legend in SVG output")
	cmd.Flags().BoolVar(&opts.noLabels, "no-labels", false, "suppress connector tag labels")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "regrow even when a cached tree exists")

	return cmd
}

func (c *CLI) runGrow(cmd *cobra.Command, title, artist string, opts growOpts) error {
	ctx := cmd.Context()

	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	applyGrowFlags(&cfg, opts)

	formats := parseFormats(opts.formatsStr)
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}
	dropPos, err := parseDropPos(opts.drop)
	if err != nil {
		return err
	}
	tagsPerLevel, err := parseIntList(opts.tagsPerLevel)
	if err != nil {
		return err
	}
	if tagsPerLevel == nil {
		tagsPerLevel = cfg.Growth.TagsPerLevel
	}

	source, libraryHash, closeSource, err := newSource(ctx, cfg.Catalog, cfg.Growth.Seed)
	if err != nil {
		return err
	}
	defer closeSource()

	runner, err := c.newRunner(cfg, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	pipeOpts := pipeline.Options{
		Root:           track.Track{Title: title, Artist: artist, Album: opts.album},
		DropPos:        dropPos,
		MaxLevels:      cfg.Growth.MaxLevels,
		TagsPerLevel:   tagsPerLevel,
		BranchesPerTag: cfg.Growth.BranchesPerTag,
		Seed:           cfg.Growth.Seed,
		Refresh:        opts.refresh,
		Formats:        formats,
		Legend:         opts.legend,
		Source:         source,
		LibraryHash:    libraryHash,
		Layout:         cfg.LayoutSettings(),
		Logger:         c.Logger,
	}
	if opts.noLabels {
		labels := false
		pipeOpts.Labels = &labels
	}

	spinner := startSpinner(ctx, fmt.Sprintf("Growing tree for %s - %s...", artist, title))

	result, err := runner.Execute(ctx, pipeOpts)
	if err != nil {
		spinner.StopWithError("Growth failed")
		return fmt.Errorf("grow: %w", err)
	}
	spinner.Stop()

	printSuccess("Grew tree for %s - %s", artist, title)
	printStats(result.Stats.NodeCount, result.Stats.ConnectionCount, result.CacheInfo.TreeHit)

	return writeArtifacts(artifactWriteParams{
		artifacts: result.Artifacts,
		formats:   formats,
		input:     defaultBaseName(title, artist),
		output:    opts.output,
	})
}

// applyGrowFlags overlays command-line flags on the loaded config.
// Flags win over config file values.
func applyGrowFlags(cfg *Config, opts growOpts) {
	if opts.library != "" {
		cfg.Catalog.Library = opts.library
		cfg.Catalog.MongoURI = ""
	}
	if opts.mongoURI != "" && opts.library == "" {
		cfg.Catalog.MongoURI = opts.mongoURI
		cfg.Catalog.Library = ""
	}
	if opts.maxLevels != 0 {
		cfg.Growth.MaxLevels = opts.maxLevels
	}
	if opts.branches != 0 {
		cfg.Growth.BranchesPerTag = opts.branches
	}
	if opts.seed != 0 {
		cfg.Growth.Seed = opts.seed
	}
}

// defaultBaseName derives an output base name from the seed track.
// "Midnight City" by M83 becomes "m83_midnight_city".
func defaultBaseName(title, artist string) string {
	s := strings.ToLower(artist + "_" + title)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '-':
			b.WriteByte('_')
		}
	}
	return b.String()
}

// =============================================================================
// Artifact Output
// =============================================================================

// artifactWriteParams bundles the inputs for writeArtifacts.
type artifactWriteParams struct {
	artifacts map[string][]byte
	formats   []string
	input     string // base name used when output is empty
	output    string // output file (single format) or base path
}

// writeArtifacts writes rendered artifacts to files. With a single format
// the output flag names the file directly; with multiple formats it is
// treated as a base path and the format extension is appended.
func writeArtifacts(p artifactWriteParams) error {
	if len(p.formats) == 1 {
		format := p.formats[0]
		path := p.output
		if path == "" {
			path = p.input + "." + format
		}
		if err := writeArtifact(path, p.artifacts[format]); err != nil {
			return err
		}
		printFile(path)
		return nil
	}

	base := basePath(p.output, p.input)
	for _, format := range p.formats {
		path := base + "." + format
		if err := writeArtifact(path, p.artifacts[format]); err != nil {
			return err
		}
		printFile(path)
	}
	return nil
}

func writeArtifact(path string, data []byte) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// basePath derives the base output path from the output and input names.
// If output has a known format extension, it is stripped.
func basePath(output, input string) string {
	if output == "" {
		return input
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
