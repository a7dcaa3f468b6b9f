package domain

import (
	"time"

	"github.com/google/uuid"
)

// Priority is a coarse difficulty tier derived from the lowest unit number
// a term is covered in. The integer value is the wire code (1, 2, 3).
type Priority int

const (
	PriorityEssential Priority = 1
	PriorityCommon    Priority = 2
	PriorityAdvanced  Priority = 3
)

// AllPriorities lists the tiers in ascending (sort) order.
var AllPriorities = []Priority{PriorityEssential, PriorityCommon, PriorityAdvanced}

func (p Priority) String() string {
	switch p {
	case PriorityEssential:
		return "ESSENTIAL"
	case PriorityCommon:
		return "COMMON"
	case PriorityAdvanced:
		return "ADVANCED"
	}
	return "UNKNOWN"
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityEssential, PriorityCommon, PriorityAdvanced:
		return true
	}
	return false
}

// Code returns the integer code used in exported records.
func (p Priority) Code() int { return int(p) }

// Default unit range of the reference work. Numbers outside it are page
// numbers, not references.
const (
	MinUnit = 1
	MaxUnit = 100
)

// VocabularyEntry is one term reconstructed from a vocabulary index.
type VocabularyEntry struct {
	Term     string
	Phonetic string
	Units    []int
	Priority Priority
}

// MinUnitNumber returns the smallest unit the entry references, or 0 when
// Units is empty.
func (e VocabularyEntry) MinUnitNumber() int {
	if len(e.Units) == 0 {
		return 0
	}
	m := e.Units[0]
	for _, u := range e.Units[1:] {
		if u < m {
			m = u
		}
	}
	return m
}

// Validate checks the catalog invariants that do not depend on classifier
// settings: non-empty term, at least one positive unit, known priority.
// The unit range itself is enforced by the classifier that produced Units.
func (e VocabularyEntry) Validate() error {
	var errs []FieldError

	if e.Term == "" {
		errs = append(errs, FieldError{Field: "term", Message: "required"})
	}
	if len(e.Units) == 0 {
		errs = append(errs, FieldError{Field: "units", Message: "at least one unit is required"})
	}
	for _, u := range e.Units {
		if u < 1 {
			errs = append(errs, FieldError{Field: "units", Message: "units must be positive"})
			break
		}
	}
	if !e.Priority.IsValid() {
		errs = append(errs, FieldError{Field: "priority", Message: "unknown priority"})
	}

	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// Catalog is the deduplicated, sorted result of parsing one index source.
type Catalog struct {
	SourceLabel      string
	Total            int
	CountsByPriority map[Priority]int
	Entries          []VocabularyEntry
}

// IndexEntry is a catalog entry as stored in the database.
type IndexEntry struct {
	ID             uuid.UUID
	SourceLabel    string
	Term           string
	TermNormalized string
	Phonetic       string
	Units          []int
	Priority       Priority
	Position       int
	CreatedAt      time.Time
}

// ToIndexEntries converts catalog entries to storage records. Position keeps
// the catalog sort order.
func (c Catalog) ToIndexEntries(now time.Time) []IndexEntry {
	out := make([]IndexEntry, len(c.Entries))
	for i, e := range c.Entries {
		units := make([]int, len(e.Units))
		copy(units, e.Units)
		out[i] = IndexEntry{
			ID:             uuid.New(),
			SourceLabel:    c.SourceLabel,
			Term:           e.Term,
			TermNormalized: NormalizeText(e.Term),
			Phonetic:       e.Phonetic,
			Units:          units,
			Priority:       e.Priority,
			Position:       i,
			CreatedAt:      now,
		}
	}
	return out
}

// CatalogFromIndexEntries rebuilds a catalog from stored rows, which must
// already be in catalog order.
func CatalogFromIndexEntries(label string, rows []IndexEntry) Catalog {
	c := Catalog{
		SourceLabel:      label,
		CountsByPriority: make(map[Priority]int, len(AllPriorities)),
		Entries:          make([]VocabularyEntry, 0, len(rows)),
	}
	for _, p := range AllPriorities {
		c.CountsByPriority[p] = 0
	}
	for _, r := range rows {
		c.Entries = append(c.Entries, VocabularyEntry{
			Term:     r.Term,
			Phonetic: r.Phonetic,
			Units:    r.Units,
			Priority: r.Priority,
		})
		c.CountsByPriority[r.Priority]++
	}
	c.Total = len(c.Entries)
	return c
}
