// Command vocabindex parses the plain-text index of a vocabulary reference
// book into a prioritized catalog, writes it as JSON and stores it in
// PostgreSQL.
//
// Flags:
//
//	--config          path to indexer YAML config file (sources, thresholds)
//	--input           index text file, "-" for stdin; replaces configured sources
//	--source          source label for --input
//	--start-marker    first real term of the index for --input
//	--footer          running page footer for --input
//	--output          JSON export path for --input
//	--dry-run         parse and export without writing to DB
//	--migrate         apply database migrations first
//	--export-db       write the stored catalog of a source as JSON to stdout
//	--list-sources    print the labels of stored sources
//	--serve           serve stored catalogs over HTTP until interrupted
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AjCapo90/lingua-forge/internal/app"
	"github.com/AjCapo90/lingua-forge/internal/config"
)

const (
	defaultSource      = "English Vocabulary in Use Pre-intermediate and Intermediate"
	defaultStartMarker = "a bit [slightly]"
	defaultFooter      = "English Vocabulary in Use"
)

func main() {
	var opts app.Options
	flag.StringVar(&opts.IndexerConfig, "config", "", "path to indexer YAML config file")
	flag.StringVar(&opts.Input, "input", "", `index text file, "-" for stdin`)
	flag.StringVar(&opts.Source, "source", defaultSource, "source label for --input")
	flag.StringVar(&opts.StartMarker, "start-marker", defaultStartMarker, "first real term of the index")
	flag.StringVar(&opts.Footer, "footer", defaultFooter, "running page footer to drop")
	flag.StringVar(&opts.Output, "output", "", "JSON export path for --input")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "parse and export without writing to DB")
	flag.BoolVar(&opts.Migrate, "migrate", false, "apply database migrations first")
	flag.StringVar(&opts.ExportLabel, "export-db", "", "write the stored catalog of a source to stdout")
	flag.BoolVar(&opts.ListSources, "list-sources", false, "print the labels of stored sources")
	flag.BoolVar(&opts.Serve, "serve", false, "serve stored catalogs over HTTP until interrupted")
	flag.Parse()

	// Load app config (for DB connection and logging).
	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}

	logger := app.NewLogger(appCfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Batch runs get a 30-minute timeout; the server runs until interrupted.
	if !opts.Serve {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, 30*time.Minute)
		defer cancelTimeout()
	}

	if err := app.Run(ctx, logger, appCfg, opts, os.Stdout); err != nil {
		logger.Error("vocabindex failed", slog.String("error", err.Error()))
		cancel()
		os.Exit(1)
	}

	logger.Info("vocabindex completed successfully")
}
