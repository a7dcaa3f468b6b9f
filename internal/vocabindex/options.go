// Package vocabindex reconstructs vocabulary entries from the plain text of a
// dictionary-style index (term, optional phonetic transcription, unit numbers).
// Pure functions: raw text in, domain catalog out. No I/O besides reading the
// input, no database dependencies.
package vocabindex

import (
	"fmt"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

const (
	// DefaultPhoneticSymbols is the symbol set counted by the phonetic share
	// test. It includes the plain vowels.
	DefaultPhoneticSymbols = "əɪʊæɒɔɛʌɑːiueoaˈˌθðʃʒŋ"

	// DefaultPhoneticMarks are symbols that never appear in an English term;
	// one of them is enough to treat a non-term line as a transcription.
	DefaultPhoneticMarks = "əɪʊæɒɔɛʌɑːˈˌθðʃʒŋ"

	DefaultPhoneticRatio    = 0.6
	DefaultMinTermLength    = 2
	DefaultMinLetterRun     = 2
	DefaultEssentialMaxUnit = 30
	DefaultCommonMaxUnit    = 60
)

// Options holds every tunable of the parser. The zero value is not usable;
// start from DefaultOptions.
type Options struct {
	// StartMarker is the first known-good term. Lines before its first
	// occurrence are front matter. Empty disables trimming.
	StartMarker string
	// Footer is the running page footer; any line containing it is dropped.
	// Empty disables footer removal.
	Footer string

	PhoneticSymbols string
	PhoneticMarks   string
	// PhoneticRatio is the share of phonetic symbols above which a line is
	// a transcription.
	PhoneticRatio float64

	MinTermLength int
	MinLetterRun  int

	// MinUnit and MaxUnit bound valid unit numbers; anything else is a page
	// number.
	MinUnit int
	MaxUnit int

	// EssentialMaxUnit and CommonMaxUnit are the inclusive upper bounds of
	// the first two priority tiers, compared against the lowest unit.
	EssentialMaxUnit int
	CommonMaxUnit    int
}

// DefaultOptions returns the thresholds tuned for the English Vocabulary in
// Use index. StartMarker and Footer are left empty; they belong to a source.
func DefaultOptions() Options {
	return Options{
		PhoneticSymbols:  DefaultPhoneticSymbols,
		PhoneticMarks:    DefaultPhoneticMarks,
		PhoneticRatio:    DefaultPhoneticRatio,
		MinTermLength:    DefaultMinTermLength,
		MinLetterRun:     DefaultMinLetterRun,
		MinUnit:          domain.MinUnit,
		MaxUnit:          domain.MaxUnit,
		EssentialMaxUnit: DefaultEssentialMaxUnit,
		CommonMaxUnit:    DefaultCommonMaxUnit,
	}
}

// Validate rejects option sets the classifier cannot work with.
func (o Options) Validate() error {
	var errs []domain.FieldError

	if o.PhoneticSymbols == "" {
		errs = append(errs, domain.FieldError{Field: "phonetic_symbols", Message: "required"})
	}
	if o.PhoneticRatio <= 0 || o.PhoneticRatio > 1 {
		errs = append(errs, domain.FieldError{Field: "phonetic_ratio", Message: fmt.Sprintf("must be in (0, 1], got %v", o.PhoneticRatio)})
	}
	if o.MinTermLength < 1 {
		errs = append(errs, domain.FieldError{Field: "min_term_length", Message: "must be >= 1"})
	}
	if o.MinLetterRun < 1 {
		errs = append(errs, domain.FieldError{Field: "min_letter_run", Message: "must be >= 1"})
	}
	if o.MinUnit < 1 || o.MaxUnit < o.MinUnit {
		errs = append(errs, domain.FieldError{Field: "unit_range", Message: fmt.Sprintf("invalid range [%d, %d]", o.MinUnit, o.MaxUnit)})
	}
	if o.EssentialMaxUnit > o.CommonMaxUnit {
		errs = append(errs, domain.FieldError{Field: "priority_bounds", Message: fmt.Sprintf("essential bound %d exceeds common bound %d", o.EssentialMaxUnit, o.CommonMaxUnit)})
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}
