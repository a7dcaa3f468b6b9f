package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/AjCapo90/lingua-forge/internal/domain"
	"github.com/AjCapo90/lingua-forge/internal/vocabindex"
)

// Source is one vocabulary index to import.
type Source struct {
	Label       string `yaml:"label"`
	Path        string `yaml:"path"` // "-" reads stdin
	StartMarker string `yaml:"start_marker"`
	Footer      string `yaml:"footer"`
	Output      string `yaml:"output"` // JSON export path; overrides OutputDir
}

// Thresholds overrides the classifier defaults for every source.
type Thresholds struct {
	PhoneticRatio    float64 `yaml:"phonetic_ratio"     env:"INDEXER_PHONETIC_RATIO"     env-default:"0.6"`
	MinUnit          int     `yaml:"min_unit"           env:"INDEXER_MIN_UNIT"           env-default:"1"`
	MaxUnit          int     `yaml:"max_unit"           env:"INDEXER_MAX_UNIT"           env-default:"100"`
	EssentialMaxUnit int     `yaml:"essential_max_unit" env:"INDEXER_ESSENTIAL_MAX_UNIT" env-default:"30"`
	CommonMaxUnit    int     `yaml:"common_max_unit"    env:"INDEXER_COMMON_MAX_UNIT"    env-default:"60"`
}

// Config holds import pipeline settings.
type Config struct {
	Sources     []Source   `yaml:"sources"`
	OutputDir   string     `yaml:"output_dir"  env:"INDEXER_OUTPUT_DIR"`
	BatchSize   int        `yaml:"batch_size"  env:"INDEXER_BATCH_SIZE"  env-default:"500"`
	Concurrency int        `yaml:"concurrency" env:"INDEXER_CONCURRENCY" env-default:"4"`
	DryRun      bool       `yaml:"dry_run"     env:"INDEXER_DRY_RUN"`
	Thresholds  Thresholds `yaml:"thresholds"`
}

// LoadConfig reads import configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags).
// Sources can only come from YAML; with an empty path the caller adds them.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("indexer config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("indexer config: read %s: %w", path, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("indexer config: read env: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration once sources are final.
func (c *Config) Validate() error {
	var errs []domain.FieldError

	if len(c.Sources) == 0 {
		errs = append(errs, domain.FieldError{Field: "sources", Message: "at least one source is required"})
	}
	seen := make(map[string]bool, len(c.Sources))
	outputs := make(map[string]string, len(c.Sources))
	stdin := 0
	for i, s := range c.Sources {
		prefix := fmt.Sprintf("sources[%d]", i)
		label := strings.TrimSpace(s.Label)
		if label == "" {
			errs = append(errs, domain.FieldError{Field: prefix + ".label", Message: "required"})
		} else if seen[label] {
			errs = append(errs, domain.FieldError{Field: prefix + ".label", Message: fmt.Sprintf("duplicate label %q", label)})
		}
		seen[label] = true
		if out := c.OutputPath(s); out != "" {
			out = filepath.Clean(out)
			if prev, ok := outputs[out]; ok {
				errs = append(errs, domain.FieldError{Field: prefix + ".output", Message: fmt.Sprintf("export path %s already used by source %q", out, prev)})
			} else {
				outputs[out] = s.Label
			}
		}
		switch strings.TrimSpace(s.Path) {
		case "":
			errs = append(errs, domain.FieldError{Field: prefix + ".path", Message: "required"})
		case "-":
			stdin++
			if stdin > 1 {
				errs = append(errs, domain.FieldError{Field: prefix + ".path", Message: "only one source may read stdin"})
			}
		}
	}
	if c.BatchSize <= 0 {
		errs = append(errs, domain.FieldError{Field: "batch_size", Message: "must be > 0"})
	}
	if c.Concurrency <= 0 {
		errs = append(errs, domain.FieldError{Field: "concurrency", Message: "must be > 0"})
	}
	if err := c.Options(Source{}).Validate(); err != nil {
		errs = append(errs, domain.FieldError{Field: "thresholds", Message: err.Error()})
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// Options builds the parser options for src.
func (c *Config) Options(src Source) vocabindex.Options {
	opts := vocabindex.DefaultOptions()
	opts.StartMarker = src.StartMarker
	opts.Footer = src.Footer
	opts.PhoneticRatio = c.Thresholds.PhoneticRatio
	opts.MinUnit = c.Thresholds.MinUnit
	opts.MaxUnit = c.Thresholds.MaxUnit
	opts.EssentialMaxUnit = c.Thresholds.EssentialMaxUnit
	opts.CommonMaxUnit = c.Thresholds.CommonMaxUnit
	return opts
}

// OutputPath returns where the JSON export of src goes, or "" when it is not
// exported.
func (c *Config) OutputPath(src Source) string {
	if src.Output != "" {
		return src.Output
	}
	if c.OutputDir == "" {
		return ""
	}
	return filepath.Join(c.OutputDir, slugify(src.Label)+".json")
}

// slugify lowercases label and joins its letter and digit runs with '-'.
func slugify(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "index"
	}
	return b.String()
}
