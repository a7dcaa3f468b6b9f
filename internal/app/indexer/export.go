package indexer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

// catalogRecord is the exported JSON document. Field names are the
// published format and must not change.
type catalogRecord struct {
	Source     string        `json:"source"`
	Total      int           `json:"total"`
	ByPriority map[int]int   `json:"by_priority"`
	Vocabulary []entryRecord `json:"vocabulary"`
}

type entryRecord struct {
	Term     string `json:"term"`
	IPA      string `json:"ipa"`
	Units    []int  `json:"units"`
	Priority int    `json:"priority"`
}

func toRecord(cat domain.Catalog) catalogRecord {
	rec := catalogRecord{
		Source:     cat.SourceLabel,
		Total:      cat.Total,
		ByPriority: make(map[int]int, len(domain.AllPriorities)),
		Vocabulary: make([]entryRecord, 0, len(cat.Entries)),
	}
	for _, p := range domain.AllPriorities {
		rec.ByPriority[p.Code()] = cat.CountsByPriority[p]
	}
	for _, e := range cat.Entries {
		units := e.Units
		if units == nil {
			units = []int{}
		}
		rec.Vocabulary = append(rec.Vocabulary, entryRecord{
			Term:     e.Term,
			IPA:      e.Phonetic,
			Units:    units,
			Priority: e.Priority.Code(),
		})
	}
	return rec
}

// WriteCatalogJSON writes cat as an indented JSON document. Non-ASCII text
// is written as is.
func WriteCatalogJSON(w io.Writer, cat domain.Catalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(toRecord(cat)); err != nil {
		return fmt.Errorf("encode catalog %q: %w", cat.SourceLabel, err)
	}
	return nil
}

// WriteCatalogFile writes cat to path, creating parent directories. The
// file is written under a temporary name and renamed into place.
func WriteCatalogFile(path string, cat domain.Catalog) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if err := f.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod output file: %w", err)
	}
	if err := WriteCatalogJSON(f, cat); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("rename output file: %w", err)
	}
	return nil
}
