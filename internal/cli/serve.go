package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tracktree/pkg/grow"
	"github.com/matzehuels/tracktree/pkg/pipeline"
)

const (
	serverReadTimeout     = 15 * time.Second
	serverWriteTimeout    = 120 * time.Second
	serverShutdownTimeout = 10 * time.Second
)

// contentTypes maps output formats to HTTP content types.
var contentTypes = map[string]string{
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatDOT:  "text/vnd.graphviz",
	pipeline.FormatJSON: "application/json",
}

// serveCommand creates the serve command for running the pipeline as an
// HTTP service.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		configPath string
		addr       string
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the grow/render pipeline over HTTP",
		Long: `Serve the grow/render pipeline over HTTP.

Endpoints:

  GET  /healthz          liveness check
  POST /api/trees        grow a tree; the JSON body uses the pipeline
                         options schema, the "format" query parameter
                         selects the response format (default svg)

The catalog and cache are configured via the TOML config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), configPath, addr, noCache)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file (default: tracktree.toml)")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, configPath, addr string, noCache bool) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	source, libraryHash, closeSource, err := newSource(ctx, cfg.Catalog, cfg.Growth.Seed)
	if err != nil {
		return err
	}
	defer closeSource()

	runner, err := c.newRunner(cfg, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	srv := &treeServer{
		cli:         c,
		cfg:         cfg,
		runner:      runner,
		source:      source,
		libraryHash: libraryHash,
	}

	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.routes(),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// treeServer handles HTTP requests against the pipeline.
type treeServer struct {
	cli         *CLI
	cfg         Config
	runner      *pipeline.Runner
	source      grow.TrackSource
	libraryHash string
}

func (s *treeServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(serverWriteTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/trees", s.handleGrow)

	return r
}

func (s *treeServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleGrow runs the grow/layout/render pipeline for a posted request
// and responds with the rendered artifact.
func (s *treeServer) handleGrow(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = pipeline.FormatSVG
	}
	if err := pipeline.ValidateFormat(format); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts.Formats = []string{format}

	// Server-side settings always win over the request body.
	opts.Source = s.source
	opts.LibraryHash = s.libraryHash
	opts.Layout = s.cfg.LayoutSettings()
	opts.Logger = s.cli.Logger
	if opts.Seed == 0 {
		opts.Seed = s.cfg.Growth.Seed
	}

	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("X-Tree-Hash", result.TreeHash)
	w.Header().Set("X-Node-Count", fmt.Sprintf("%d", result.Stats.NodeCount))
	if result.CacheInfo.TreeHit {
		w.Header().Set("X-Cache", "hit")
	}
	_, _ = w.Write(result.Artifacts[format])
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
