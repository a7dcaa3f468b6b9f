package vocabindex

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

// Kind is the category a single index line falls into.
type Kind int

const (
	KindNoise Kind = iota
	KindTermCandidate
	KindPhonetic
	KindUnitNumbers
	KindPageNumber
)

func (k Kind) String() string {
	switch k {
	case KindTermCandidate:
		return "TERM_CANDIDATE"
	case KindPhonetic:
		return "PHONETIC"
	case KindUnitNumbers:
		return "UNIT_NUMBERS"
	case KindPageNumber:
		return "PAGE_NUMBER"
	default:
		return "NOISE"
	}
}

// Classification is the result of Classify. Units is set only for
// KindUnitNumbers.
type Classification struct {
	Kind  Kind
	Units []int
}

var (
	// "1", "1, 4", "12,30,31": one or more 1-3 digit integers.
	unitLineRe = regexp.MustCompile(`^\d{1,3}(?:,\s*\d{1,3})*$`)
	// Standalone page numbers of any width.
	bareNumberRe = regexp.MustCompile(`^\d+$`)
	// Numeric fragments such as "12," or "3, 4," split off a units line.
	partialNumberRe = regexp.MustCompile(`^\d+,?\s*\d*,?$`)

	separatorStripper = strings.NewReplacer(" ", "", "-", "")
)

// Classifier categorises index lines. It is immutable after construction and
// safe for concurrent use.
type Classifier struct {
	opts    Options
	symbols map[rune]struct{}
	marks   string
}

// NewClassifier builds a Classifier from opts. Options are not validated here;
// see Options.Validate.
func NewClassifier(opts Options) *Classifier {
	symbols := make(map[rune]struct{}, utf8.RuneCountInString(opts.PhoneticSymbols))
	for _, r := range opts.PhoneticSymbols {
		symbols[r] = struct{}{}
	}
	return &Classifier{opts: opts, symbols: symbols, marks: opts.PhoneticMarks}
}

// Options returns the options the classifier was built with.
func (c *Classifier) Options() Options { return c.opts }

// Classify decides what a single trimmed line is. Unit numbers are checked
// before anything else so digit strings like "1,30" are never read as
// transcriptions. A unit-shaped line with any number outside the unit range
// is a page number.
func (c *Classifier) Classify(text string) Classification {
	if unitLineRe.MatchString(text) {
		units := parseUnits(text)
		if c.unitsInRange(units) {
			return Classification{Kind: KindUnitNumbers, Units: units}
		}
		return Classification{Kind: KindPageNumber}
	}
	if bareNumberRe.MatchString(text) {
		return Classification{Kind: KindPageNumber}
	}

	if c.IsTerm(text) {
		return Classification{Kind: KindTermCandidate}
	}
	if c.looksPhonetic(text) {
		return Classification{Kind: KindPhonetic}
	}
	return Classification{Kind: KindNoise}
}

// IsFooter reports whether text is the running page footer.
func (c *Classifier) IsFooter(text string) bool {
	return c.opts.Footer != "" && strings.Contains(text, c.opts.Footer)
}

// IsTerm reports whether text can stand as a vocabulary term: long enough,
// not a transcription, contains a run of ASCII letters, and is not a numeric
// fragment.
func (c *Classifier) IsTerm(text string) bool {
	if utf8.RuneCountInString(text) < c.opts.MinTermLength {
		return false
	}
	if c.IsPhoneticOnly(text) {
		return false
	}
	if !hasLetterRun(text, c.opts.MinLetterRun) {
		return false
	}
	return !partialNumberRe.MatchString(text)
}

// IsPhoneticOnly reports whether text, ignoring spaces and hyphens, consists
// of phonetic symbols: either all of them or more than PhoneticRatio of them.
// Fragments shorter than MinTermLength count as phonetic.
func (c *Classifier) IsPhoneticOnly(text string) bool {
	cleaned := separatorStripper.Replace(text)
	n := utf8.RuneCountInString(cleaned)
	if n < c.opts.MinTermLength {
		return true
	}

	count := 0
	for _, r := range cleaned {
		if _, ok := c.symbols[r]; ok {
			count++
		}
	}
	return count == n || float64(count) > float64(n)*c.opts.PhoneticRatio
}

// looksPhonetic is the lookahead test: a phonetic-only line, or any line
// carrying a transcription-only mark.
func (c *Classifier) looksPhonetic(text string) bool {
	return c.IsPhoneticOnly(text) || (c.marks != "" && strings.ContainsAny(text, c.marks))
}

// Priority maps the lowest unit of an entry to its tier.
func (c *Classifier) Priority(minUnit int) domain.Priority {
	switch {
	case minUnit <= c.opts.EssentialMaxUnit:
		return domain.PriorityEssential
	case minUnit <= c.opts.CommonMaxUnit:
		return domain.PriorityCommon
	default:
		return domain.PriorityAdvanced
	}
}

func (c *Classifier) unitsInRange(units []int) bool {
	if len(units) == 0 {
		return false
	}
	for _, u := range units {
		if u < c.opts.MinUnit || u > c.opts.MaxUnit {
			return false
		}
	}
	return true
}

// parseUnits splits a line already matched by unitLineRe.
func parseUnits(text string) []int {
	parts := strings.Split(text, ",")
	units := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		units = append(units, n)
	}
	return units
}

// hasLetterRun reports whether text contains at least n consecutive ASCII
// letters.
func hasLetterRun(text string, n int) bool {
	run := 0
	for i := 0; i < len(text); i++ {
		b := text[i]
		if ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') {
			run++
			if run >= n {
				return true
			}
			continue
		}
		run = 0
	}
	return false
}
