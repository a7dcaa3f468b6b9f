package vocabindex

import (
	"strings"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

type state int

const (
	stateScanning state = iota
	stateLookahead
	stateCommit
)

// pending is an entry under construction during lookahead.
type pending struct {
	term     string
	phonetic []string
	units    []int
}

// Assemble walks the lines once and rebuilds entries. A term candidate opens a
// lookahead window that collects transcription lines until the first unit
// line, which is attached and closes the window. Anything else closes the
// window without being consumed. Entries without units are dropped.
//
// Known fragility: units that precede the transcription, or a transcription
// split around another line, mis-assemble. This mirrors the one layout the
// index is printed in.
func Assemble(lines []Line, c *Classifier, stats *Stats) []domain.VocabularyEntry {
	var (
		entries []domain.VocabularyEntry
		cur     pending
		st      = stateScanning
		i       = 0
	)

	for i < len(lines) || st != stateScanning {
		switch st {
		case stateScanning:
			text := lines[i].Text
			i++
			if c.IsFooter(text) {
				stats.FooterLines++
				continue
			}
			switch c.Classify(text).Kind {
			case KindTermCandidate:
				stats.Candidates++
				cur = pending{term: text}
				st = stateLookahead
			case KindPageNumber:
				stats.PageNumbers++
			default:
				stats.NoiseLines++
			}

		case stateLookahead:
			if i >= len(lines) {
				st = stateCommit
				continue
			}
			text := lines[i].Text
			if c.IsFooter(text) {
				stats.FooterLines++
				i++
				continue
			}
			cls := c.Classify(text)
			switch cls.Kind {
			case KindUnitNumbers:
				cur.units = cls.Units
				i++
				st = stateCommit
			case KindPhonetic:
				cur.phonetic = append(cur.phonetic, text)
				i++
			default:
				st = stateCommit
			}

		case stateCommit:
			if e, ok := commit(cur, c); ok {
				entries = append(entries, e)
				stats.Committed++
			} else {
				stats.Discarded++
			}
			cur = pending{}
			st = stateScanning
		}
	}

	return entries
}

// commit finalizes a pending entry. It reports false for entries that break
// the catalog invariant; those are dropped without error.
func commit(p pending, c *Classifier) (domain.VocabularyEntry, bool) {
	term := domain.CollapseWhitespace(p.term)
	if !c.IsTerm(term) || len(p.units) == 0 {
		return domain.VocabularyEntry{}, false
	}

	e := domain.VocabularyEntry{
		Term:     term,
		Phonetic: strings.TrimSpace(strings.Join(p.phonetic, " ")),
		Units:    p.units,
	}
	e.Priority = c.Priority(e.MinUnitNumber())

	if err := e.Validate(); err != nil {
		return domain.VocabularyEntry{}, false
	}
	return e, true
}
