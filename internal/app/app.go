package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AjCapo90/lingua-forge/internal/adapter/postgres"
	"github.com/AjCapo90/lingua-forge/internal/adapter/postgres/vocabulary"
	"github.com/AjCapo90/lingua-forge/internal/app/indexer"
	"github.com/AjCapo90/lingua-forge/internal/config"
	"github.com/AjCapo90/lingua-forge/internal/transport/middleware"
	"github.com/AjCapo90/lingua-forge/internal/transport/rest"
	"github.com/AjCapo90/lingua-forge/migrations"
)

// Compile-time interface assertions.
var (
	_ indexer.IndexRepo = (*vocabulary.Repo)(nil)
	_ indexer.TxRunner  = (*postgres.TxManager)(nil)
)

// ErrImportFailed is returned when at least one source could not be imported.
var ErrImportFailed = errors.New("one or more sources failed")

// Options are the command line settings of the vocabindex command. Input,
// when set, replaces the sources of the indexer config with a single source.
type Options struct {
	IndexerConfig string

	Input       string
	Source      string
	StartMarker string
	Footer      string
	Output      string

	DryRun      bool
	Migrate     bool
	ListSources bool
	ExportLabel string
	Serve       bool
}

// needsDatabase reports whether the requested action touches PostgreSQL.
func (o Options) needsDatabase(cfg *indexer.Config) bool {
	return o.Migrate || o.ListSources || o.ExportLabel != "" || o.Serve || !cfg.DryRun
}

// Run executes one vocabindex invocation. Catalog JSON for --list-sources and
// --export-db goes to stdout. With Serve set it blocks until ctx is done.
func Run(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts Options, stdout io.Writer) error {
	logger.Info("starting vocabindex", slog.String("version", BuildVersion()))

	icfg, err := indexer.LoadConfig(opts.IndexerConfig)
	if err != nil {
		return err
	}
	applyOptions(icfg, opts)

	var (
		pool *pgxpool.Pool
		repo indexer.IndexRepo
		tx   indexer.TxRunner
	)
	if opts.needsDatabase(icfg) {
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}

		if opts.Migrate {
			if err := postgres.Migrate(ctx, cfg.Database.DSN, migrations.FS, logger); err != nil {
				return err
			}
		}

		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		repo = vocabulary.New(pool)
		tx = postgres.NewTxManager(pool)
	}

	pipeline := indexer.NewPipeline(logger, repo, tx, *icfg)

	switch {
	case opts.Serve:
		return serve(ctx, logger, cfg, pool, pipeline)

	case opts.ListSources:
		labels, err := pipeline.StoredSources(ctx)
		if err != nil {
			return err
		}
		for _, l := range labels {
			if _, err := fmt.Fprintln(stdout, l); err != nil {
				return err
			}
		}
		return nil

	case opts.ExportLabel != "":
		return pipeline.ExportStored(ctx, opts.ExportLabel, stdout)

	case opts.Migrate && len(icfg.Sources) == 0:
		// Migrate only.
		return nil
	}

	if err := pipeline.Run(ctx); err != nil {
		return err
	}
	if pipeline.HasErrors() {
		return ErrImportFailed
	}
	return nil
}

// applyOptions lets command line flags override the indexer config.
func applyOptions(cfg *indexer.Config, opts Options) {
	if opts.DryRun {
		cfg.DryRun = true
	}
	if opts.Input != "" {
		cfg.Sources = []indexer.Source{{
			Label:       opts.Source,
			Path:        opts.Input,
			StartMarker: opts.StartMarker,
			Footer:      opts.Footer,
			Output:      opts.Output,
		}}
	}
}

// newAPIHandler builds the read-only catalog API.
func newAPIHandler(logger *slog.Logger, cfg *config.Config, db rest.Pinger, pipeline *indexer.Pipeline) http.Handler {
	mux := http.NewServeMux()

	health := rest.NewHealthHandler(db, BuildVersion())
	mux.HandleFunc("GET /live", health.Live)
	mux.HandleFunc("GET /ready", health.Ready)
	mux.HandleFunc("GET /health", health.Health)

	rest.NewCatalogHandler(pipeline, logger).Register(mux)

	return middleware.Chain(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.CORS(cfg.CORS),
	)(mux)
}

// serve runs the catalog API until ctx is done, then shuts it down
// gracefully.
func serve(ctx context.Context, logger *slog.Logger, cfg *config.Config, db rest.Pinger, pipeline *indexer.Pipeline) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           newAPIHandler(logger, cfg, db, pipeline),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
