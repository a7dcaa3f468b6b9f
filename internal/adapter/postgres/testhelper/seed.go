package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

// UniqueLabel returns a source label that no other test uses, so tests can
// share the container without cleaning up.
func UniqueLabel(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}

// SeedIndexEntry inserts a single index row for label and returns it.
func SeedIndexEntry(t *testing.T, pool *pgxpool.Pool, label, term string, units ...int) domain.IndexEntry {
	t.Helper()

	if len(units) == 0 {
		units = []int{1}
	}
	e := domain.IndexEntry{
		ID:             uuid.New(),
		SourceLabel:    label,
		Term:           term,
		TermNormalized: domain.NormalizeText(term),
		Units:          units,
		Priority:       domain.PriorityEssential,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}

	units32 := make([]int32, len(units))
	for i, u := range units {
		units32[i] = int32(u)
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO vocabulary_index_entries
		 (id, source_label, term, term_normalized, phonetic, units, priority, position, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.SourceLabel, e.Term, e.TermNormalized, e.Phonetic, units32, int16(e.Priority), e.Position, e.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: seed index entry: %v", err)
	}
	return e
}
