// Package indexer imports vocabulary indexes: it parses configured sources,
// writes their JSON exports and stores the catalogs in the database.
package indexer

import (
	"context"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

// IndexRepo defines the repository contract consumed by the import pipeline.
// All methods use only domain types, no adapter imports.
// Implemented by vocabulary.Repo.
type IndexRepo interface {
	// Replace: delete + insert of one source, run inside a transaction.
	DeleteBySource(ctx context.Context, sourceLabel string) (int, error)
	BulkInsertEntries(ctx context.Context, entries []domain.IndexEntry) (int, error)

	// Reads: verification after insert and re-export.
	CountByPriority(ctx context.Context, sourceLabel string) (map[domain.Priority]int, error)
	ListBySource(ctx context.Context, filter domain.IndexFilter) ([]domain.IndexEntry, error)
	ListSources(ctx context.Context) ([]string, error)
}

// TxRunner runs fn inside a database transaction. Implemented by
// postgres.TxManager.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
