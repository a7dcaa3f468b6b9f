// Package vocabulary stores parsed index catalogs in PostgreSQL. A source's
// rows are replaced as a whole on every import; there is no per-entry update.
package vocabulary

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/AjCapo90/lingua-forge/internal/adapter/postgres"
	"github.com/AjCapo90/lingua-forge/internal/domain"
)

const (
	table  = "vocabulary_index_entries"
	entity = "vocabulary_index_entry"
)

var (
	psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	columns = []string{
		"id", "source_label", "term", "term_normalized", "phonetic",
		"units", "priority", "position", "created_at",
	}

	// Search input is a literal prefix.
	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// Repo provides index catalog persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new vocabulary index repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// DeleteBySource removes every row of a source. Returns the number of rows
// deleted.
func (r *Repo) DeleteBySource(ctx context.Context, sourceLabel string) (int, error) {
	sql, args, err := psql.Delete(table).
		Where(squirrel.Eq{"source_label": sourceLabel}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(err, entity, sourceLabel)
	}
	return int(tag.RowsAffected()), nil
}

// BulkInsertEntries inserts index rows using pgx.Batch. Rows whose
// (source_label, term_normalized) already exists are skipped via
// ON CONFLICT DO NOTHING. Returns the number of actually inserted rows.
func (r *Repo) BulkInsertEntries(ctx context.Context, entries []domain.IndexEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO vocabulary_index_entries
			 (id, source_label, term, term_normalized, phonetic, units, priority, position, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (source_label, term_normalized) DO NOTHING`,
			e.ID, e.SourceLabel, e.Term, e.TermNormalized, e.Phonetic,
			toInt32s(e.Units), int16(e.Priority), e.Position, e.CreatedAt,
		)
	}

	n, err := r.sendBatchExec(ctx, batch)
	if err != nil {
		return n, postgres.MapError(err, entity, entries[0].SourceLabel)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListBySource returns stored rows matching filter in catalog order.
// filter.SourceLabel is required.
func (r *Repo) ListBySource(ctx context.Context, filter domain.IndexFilter) ([]domain.IndexEntry, error) {
	if filter.SourceLabel == "" {
		return nil, domain.NewValidationError("source_label", "required")
	}

	q := psql.Select(columns...).
		From(table).
		Where(squirrel.Eq{"source_label": filter.SourceLabel}).
		OrderBy("position ASC")
	if filter.Priority != nil {
		q = q.Where(squirrel.Eq{"priority": int16(*filter.Priority)})
	}
	if filter.Search != nil && *filter.Search != "" {
		q = q.Where(squirrel.Like{"term_normalized": likeEscaper.Replace(domain.NormalizeText(*filter.Search)) + "%"})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, entity, filter.SourceLabel)
	}
	defer rows.Close()

	var out []domain.IndexEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, postgres.MapError(err, entity, filter.SourceLabel)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, entity, filter.SourceLabel)
	}

	return out, nil
}

// CountByPriority returns the number of stored rows per priority for a
// source. Every known priority is present in the result, possibly as 0.
func (r *Repo) CountByPriority(ctx context.Context, sourceLabel string) (map[domain.Priority]int, error) {
	sql, args, err := psql.Select("priority", "COUNT(*)").
		From(table).
		Where(squirrel.Eq{"source_label": sourceLabel}).
		GroupBy("priority").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, entity, sourceLabel)
	}
	defer rows.Close()

	counts := make(map[domain.Priority]int, len(domain.AllPriorities))
	for _, p := range domain.AllPriorities {
		counts[p] = 0
	}
	for rows.Next() {
		var (
			p int16
			n int64
		)
		if err := rows.Scan(&p, &n); err != nil {
			return nil, postgres.MapError(err, entity, sourceLabel)
		}
		counts[domain.Priority(p)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, entity, sourceLabel)
	}

	return counts, nil
}

// ListSources returns the distinct source labels that have stored rows,
// sorted alphabetically.
func (r *Repo) ListSources(ctx context.Context) ([]string, error) {
	sql, args, err := psql.Select("DISTINCT source_label").
		From(table).
		OrderBy("source_label ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, entity, "*")
	}
	labels, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, postgres.MapError(err, entity, "*")
	}
	return labels, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sendBatchExec sends a pgx.Batch and counts affected rows from Exec results.
func (r *Repo) sendBatchExec(ctx context.Context, batch *pgx.Batch) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)
	results := q.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int
	for range batch.Len() {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("batch exec: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

func scanEntry(row pgx.Row) (domain.IndexEntry, error) {
	var (
		e        domain.IndexEntry
		units    []int32
		priority int16
	)
	err := row.Scan(
		&e.ID, &e.SourceLabel, &e.Term, &e.TermNormalized, &e.Phonetic,
		&units, &priority, &e.Position, &e.CreatedAt,
	)
	if err != nil {
		return domain.IndexEntry{}, err
	}

	e.Units = make([]int, len(units))
	for i, u := range units {
		e.Units[i] = int(u)
	}
	e.Priority = domain.Priority(priority)
	return e, nil
}

func toInt32s(units []int) []int32 {
	out := make([]int32, len(units))
	for i, u := range units {
		out[i] = int32(u)
	}
	return out
}
