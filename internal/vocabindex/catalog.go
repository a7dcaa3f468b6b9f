package vocabindex

import (
	"cmp"
	"slices"
	"strings"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

// BuildCatalog deduplicates entries by case-insensitive term (first
// occurrence wins), sorts them by (priority, lowercased term) and counts them
// per priority. It returns the catalog and the number of duplicates dropped.
func BuildCatalog(label string, entries []domain.VocabularyEntry) (domain.Catalog, int) {
	type keyed struct {
		key   string
		entry domain.VocabularyEntry
	}

	seen := make(map[string]struct{}, len(entries))
	unique := make([]keyed, 0, len(entries))
	duplicates := 0
	for _, e := range entries {
		key := strings.ToLower(e.Term)
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, keyed{key: key, entry: e})
	}

	slices.SortStableFunc(unique, func(a, b keyed) int {
		if c := cmp.Compare(a.entry.Priority, b.entry.Priority); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})

	cat := domain.Catalog{
		SourceLabel:      label,
		CountsByPriority: make(map[domain.Priority]int, len(domain.AllPriorities)),
		Entries:          make([]domain.VocabularyEntry, len(unique)),
	}
	for _, p := range domain.AllPriorities {
		cat.CountsByPriority[p] = 0
	}
	for i, u := range unique {
		cat.Entries[i] = u.entry
		cat.CountsByPriority[u.entry.Priority]++
	}
	cat.Total = len(cat.Entries)

	return cat, duplicates
}
