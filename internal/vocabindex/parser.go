package vocabindex

import (
	"fmt"
	"io"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

// Stats holds parser statistics for logging.
type Stats struct {
	TotalLines       int  // non-empty lines in the input
	FrontMatterLines int  // lines dropped before the start marker
	MarkerFound      bool // false means parsing started at line 0
	FooterLines      int
	PageNumbers      int
	NoiseLines       int
	Candidates       int // term candidates that opened a lookahead
	Committed        int
	Discarded        int // candidates without units or with an invalid term
	Duplicates       int
}

// Parser runs the full pipeline: normalize, classify, assemble, build catalog.
// A Parser holds no per-run state and may be shared between goroutines.
type Parser struct {
	cls *Classifier
}

// New validates opts and returns a Parser.
func New(opts Options) (*Parser, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("vocabindex options: %w", err)
	}
	return &Parser{cls: NewClassifier(opts)}, nil
}

// Classifier exposes the line classifier the parser uses.
func (p *Parser) Classifier() *Classifier { return p.cls }

// ParseText parses the concatenated text of an index. It never fails:
// anything it cannot classify is skipped.
func (p *Parser) ParseText(raw, label string) (domain.Catalog, Stats) {
	var stats Stats
	lines := NormalizeLines(raw, p.cls, &stats)
	entries := Assemble(lines, p.cls, &stats)
	cat, dups := BuildCatalog(label, entries)
	stats.Duplicates = dups
	return cat, stats
}

// Parse reads r to the end and parses it. The only error is a read error.
func (p *Parser) Parse(r io.Reader, label string) (domain.Catalog, Stats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Catalog{}, Stats{}, fmt.Errorf("read index text: %w", err)
	}
	cat, stats := p.ParseText(string(data), label)
	return cat, stats, nil
}

// Parse is a one-shot helper: it builds a Parser from opts and parses raw.
// The only error is an invalid option set.
func Parse(raw, label string, opts Options) (domain.Catalog, Stats, error) {
	p, err := New(opts)
	if err != nil {
		return domain.Catalog{}, Stats{}, err
	}
	cat, stats := p.ParseText(raw, label)
	return cat, stats, nil
}
