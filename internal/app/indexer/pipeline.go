package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AjCapo90/lingua-forge/internal/domain"
	"github.com/AjCapo90/lingua-forge/internal/vocabindex"
	"github.com/AjCapo90/lingua-forge/pkg/ctxutil"
)

// ErrNoRepo is returned by operations that need the database when the
// pipeline was built without one.
var ErrNoRepo = errors.New("indexer: no repository configured")

// SourceResult holds the outcome of importing a single source.
type SourceResult struct {
	Label    string
	Output   string // JSON export path, empty when not exported
	Catalog  domain.Catalog
	Stats    vocabindex.Stats
	Deleted  int
	Inserted int
	Duration time.Duration
	Err      error
}

// Pipeline parses every configured source concurrently, then exports and
// persists the catalogs one source at a time.
type Pipeline struct {
	log     *slog.Logger
	repo    IndexRepo
	tx      TxRunner
	cfg     Config
	stdin   io.Reader
	now     func() time.Time
	results []SourceResult
}

// NewPipeline creates a new Pipeline. repo and tx may be nil for dry runs.
func NewPipeline(log *slog.Logger, repo IndexRepo, tx TxRunner, cfg Config) *Pipeline {
	return &Pipeline{
		log:   log,
		repo:  repo,
		tx:    tx,
		cfg:   cfg,
		stdin: os.Stdin,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Results returns per-source results after Run completes, in config order.
func (p *Pipeline) Results() []SourceResult {
	return p.results
}

// HasErrors returns true if any source failed.
func (p *Pipeline) HasErrors() bool {
	for _, r := range p.results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Run imports every configured source. A failing source does not stop the
// others; its error is recorded in its SourceResult. Run itself fails only
// on invalid configuration or cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.cfg.Validate(); err != nil {
		return fmt.Errorf("indexer config: %w", err)
	}
	if !p.cfg.DryRun && (p.repo == nil || p.tx == nil) {
		return ErrNoRepo
	}

	runID := uuid.New()
	ctx = ctxutil.WithRunID(ctx, runID)
	p.logger(ctx).Info("import started",
		slog.Int("sources", len(p.cfg.Sources)),
		slog.Bool("dry_run", p.cfg.DryRun),
	)

	// Step 1: parse all sources concurrently.
	p.results = make([]SourceResult, len(p.cfg.Sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, src := range p.cfg.Sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				p.results[i] = SourceResult{Label: src.Label, Err: err}
				return nil
			}
			p.results[i] = p.parseSource(ctxutil.WithSource(gctx, src.Label), src)
			return nil
		})
	}
	_ = g.Wait()

	// Step 2: export and persist sequentially.
	for i, src := range p.cfg.Sources {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import canceled: %w", err)
		}

		res := &p.results[i]
		if res.Err != nil {
			p.logger(ctx).Warn("source failed", slog.String("source", src.Label), slog.String("error", res.Err.Error()))
			continue
		}

		start := time.Now()
		sctx := ctxutil.WithSource(ctx, src.Label)
		p.finishSource(sctx, src, res)
		res.Duration += time.Since(start)

		if res.Err != nil {
			p.logger(sctx).Warn("source failed",
				slog.String("error", res.Err.Error()),
				slog.Duration("duration", res.Duration),
			)
			continue
		}
		p.logger(sctx).Info("source completed",
			slog.Int("entries", res.Catalog.Total),
			slog.Int("essential", res.Catalog.CountsByPriority[domain.PriorityEssential]),
			slog.Int("common", res.Catalog.CountsByPriority[domain.PriorityCommon]),
			slog.Int("advanced", res.Catalog.CountsByPriority[domain.PriorityAdvanced]),
			slog.Int("deleted", res.Deleted),
			slog.Int("inserted", res.Inserted),
			slog.String("output", res.Output),
			slog.Duration("duration", res.Duration),
		)
	}

	p.logger(ctx).Info("import completed", slog.Bool("has_errors", p.HasErrors()))
	return nil
}

// parseSource reads and parses one source. It never touches the database.
func (p *Pipeline) parseSource(ctx context.Context, src Source) SourceResult {
	start := time.Now()
	res := SourceResult{Label: src.Label, Output: p.cfg.OutputPath(src)}

	parser, err := vocabindex.New(p.cfg.Options(src))
	if err != nil {
		res.Err = err
		return res
	}

	r, closeFn, err := p.open(src.Path)
	if err != nil {
		res.Err = err
		return res
	}
	defer closeFn()

	res.Catalog, res.Stats, err = parser.Parse(r, src.Label)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("parse %s: %w", src.Path, err)
		return res
	}

	if !res.Stats.MarkerFound && src.StartMarker != "" {
		p.logger(ctx).Warn("start marker not found, parsed from the first line",
			slog.String("marker", src.StartMarker),
		)
	}
	p.logger(ctx).Info("source parsed",
		slog.Int("lines", res.Stats.TotalLines),
		slog.Int("front_matter", res.Stats.FrontMatterLines),
		slog.Int("footers", res.Stats.FooterLines),
		slog.Int("candidates", res.Stats.Candidates),
		slog.Int("discarded", res.Stats.Discarded),
		slog.Int("duplicates", res.Stats.Duplicates),
		slog.Int("entries", res.Catalog.Total),
		slog.Duration("duration", res.Duration),
	)
	return res
}

// finishSource writes the JSON export and, unless this is a dry run,
// replaces the stored rows of the source.
func (p *Pipeline) finishSource(ctx context.Context, src Source, res *SourceResult) {
	if res.Output != "" {
		if err := WriteCatalogFile(res.Output, res.Catalog); err != nil {
			res.Err = fmt.Errorf("export %s: %w", res.Output, err)
			return
		}
	}

	if p.cfg.DryRun {
		return
	}

	deleted, inserted, err := p.persist(ctx, res.Catalog)
	if err != nil {
		res.Err = fmt.Errorf("persist: %w", err)
		return
	}
	res.Deleted, res.Inserted = deleted, inserted
}

// persist replaces the stored rows of cat.SourceLabel in one transaction and
// verifies the stored counts against the catalog before committing.
func (p *Pipeline) persist(ctx context.Context, cat domain.Catalog) (deleted, inserted int, err error) {
	rows := cat.ToIndexEntries(p.now())

	err = p.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = p.repo.DeleteBySource(ctx, cat.SourceLabel)
		if err != nil {
			return fmt.Errorf("delete previous rows: %w", err)
		}

		inserted, err = batchProcess(rows, p.cfg.BatchSize, func(batch []domain.IndexEntry) (int, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return p.repo.BulkInsertEntries(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("insert entries: %w", err)
		}
		if inserted != len(rows) {
			return fmt.Errorf("inserted %d of %d entries", inserted, len(rows))
		}

		stored, err := p.repo.CountByPriority(ctx, cat.SourceLabel)
		if err != nil {
			return fmt.Errorf("count stored rows: %w", err)
		}
		if !maps.Equal(stored, cat.CountsByPriority) {
			return fmt.Errorf("stored counts %v do not match catalog counts %v", stored, cat.CountsByPriority)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, inserted, nil
}

// ExportStored rebuilds the catalog of a stored source and writes it as JSON.
// Returns domain.ErrNotFound when the source has no rows.
func (p *Pipeline) ExportStored(ctx context.Context, label string, w io.Writer) error {
	if p.repo == nil {
		return ErrNoRepo
	}

	rows, err := p.repo.ListBySource(ctx, domain.IndexFilter{SourceLabel: label})
	if err != nil {
		return fmt.Errorf("list stored entries: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("source %q: %w", label, domain.ErrNotFound)
	}

	cat := domain.CatalogFromIndexEntries(label, rows)
	p.logger(ctxutil.WithSource(ctx, label)).Info("exporting stored catalog", slog.Int("entries", cat.Total))
	return WriteCatalogJSON(w, cat)
}

// StoredSources returns the labels of every stored source.
func (p *Pipeline) StoredSources(ctx context.Context) ([]string, error) {
	if p.repo == nil {
		return nil, ErrNoRepo
	}
	labels, err := p.repo.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored sources: %w", err)
	}
	return labels, nil
}

// StoredEntries returns stored rows of one source matching filter, in
// catalog order.
func (p *Pipeline) StoredEntries(ctx context.Context, filter domain.IndexFilter) ([]domain.IndexEntry, error) {
	if p.repo == nil {
		return nil, ErrNoRepo
	}
	rows, err := p.repo.ListBySource(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list stored entries: %w", err)
	}
	return rows, nil
}

// open returns a reader for path; "-" is stdin, which is never closed.
func (p *Pipeline) open(path string) (io.Reader, func(), error) {
	if path == "-" {
		return p.stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open source: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// logger returns the pipeline logger annotated with the run and source
// carried by ctx.
func (p *Pipeline) logger(ctx context.Context) *slog.Logger {
	l := p.log
	if id, ok := ctxutil.RunIDFromCtx(ctx); ok {
		l = l.With(slog.String("run_id", id.String()))
	}
	if src := ctxutil.SourceFromCtx(ctx); src != "" {
		l = l.With(slog.String("source", src))
	}
	return l
}

// batchProcess splits items into chunks of batchSize and calls fn for each.
func batchProcess[T any](items []T, batchSize int, fn func([]T) (int, error)) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	total := 0
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		n, err := fn(items[i:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
