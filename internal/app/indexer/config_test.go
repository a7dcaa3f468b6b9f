package indexer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AjCapo90/lingua-forge/internal/domain"
)

const indexerYAML = `
output_dir: "out"
batch_size: 50
sources:
  - label: "English Vocabulary in Use Pre-intermediate and Intermediate"
    path: "evu.txt"
    start_marker: "a bit [slightly]"
    footer: "English Vocabulary in Use"
  - label: "Second"
    path: "second.txt"
    output: "custom/second.json"
thresholds:
  max_unit: 120
`

func validConfig() Config {
	return Config{
		Sources:     []Source{{Label: "EVU", Path: "evu.txt"}},
		BatchSize:   100,
		Concurrency: 2,
		Thresholds: Thresholds{
			PhoneticRatio:    0.6,
			MinUnit:          1,
			MaxUnit:          100,
			EssentialMaxUnit: 30,
			CommonMaxUnit:    60,
		},
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(indexerYAML), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "a bit [slightly]", cfg.Sources[0].StartMarker)
	assert.Equal(t, "English Vocabulary in Use", cfg.Sources[0].Footer)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 4, cfg.Concurrency, "default")
	assert.Equal(t, 120, cfg.Thresholds.MaxUnit)
	assert.Equal(t, 0.6, cfg.Thresholds.PhoneticRatio, "default")
	assert.Equal(t, 30, cfg.Thresholds.EssentialMaxUnit, "default")
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join("out", "english-vocabulary-in-use-pre-intermediate-and-intermediate.json"), cfg.OutputPath(cfg.Sources[0]))
	assert.Equal(t, "custom/second.json", cfg.OutputPath(cfg.Sources[1]))
}

func TestLoadConfig_ENV(t *testing.T) {
	t.Setenv("INDEXER_BATCH_SIZE", "7")
	t.Setenv("INDEXER_DRY_RUN", "true")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.BatchSize)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 100, cfg.Thresholds.MaxUnit)
	assert.Empty(t, cfg.Sources)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no sources", func(c *Config) { c.Sources = nil }, "sources"},
		{"missing label", func(c *Config) { c.Sources[0].Label = " " }, "sources[0].label"},
		{"missing path", func(c *Config) { c.Sources[0].Path = "" }, "sources[0].path"},
		{"duplicate label", func(c *Config) {
			c.Sources = append(c.Sources, Source{Label: "EVU", Path: "other.txt"})
		}, "sources[1].label"},
		{"two stdin sources", func(c *Config) {
			c.Sources = []Source{{Label: "a", Path: "-"}, {Label: "b", Path: "-"}}
		}, "sources[1].path"},
		{"labels with the same export file", func(c *Config) {
			c.OutputDir = "out"
			c.Sources = []Source{{Label: "A B", Path: "a.txt"}, {Label: "a-b", Path: "b.txt"}}
		}, "sources[1].output"},
		{"explicit output clashes with default", func(c *Config) {
			c.OutputDir = "out"
			c.Sources = []Source{{Label: "EVU", Path: "a.txt"}, {Label: "Other", Path: "b.txt", Output: "out/./evu.json"}}
		}, "sources[1].output"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"bad thresholds", func(c *Config) { c.Thresholds.MaxUnit = 0 }, "thresholds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))

			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			fields := make([]string, len(ve.Errors))
			for i, fe := range ve.Errors {
				fields[i] = fe.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}

	t.Run("valid", func(t *testing.T) {
		cfg := validConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("distinct exports", func(t *testing.T) {
		cfg := validConfig()
		cfg.OutputDir = "out"
		cfg.Sources = []Source{{Label: "A B", Path: "a.txt"}, {Label: "a-b", Path: "b.txt", Output: "out/a-b-2.json"}}
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_Options(t *testing.T) {
	cfg := validConfig()
	cfg.Thresholds.MaxUnit = 120
	opts := cfg.Options(Source{StartMarker: "m", Footer: "f"})

	assert.Equal(t, "m", opts.StartMarker)
	assert.Equal(t, "f", opts.Footer)
	assert.Equal(t, 120, opts.MaxUnit)
	assert.NotEmpty(t, opts.PhoneticSymbols)
	assert.NoError(t, opts.Validate())
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"English Vocabulary in Use", "english-vocabulary-in-use"},
		{"  EVU (2nd ed.) ", "evu-2nd-ed"},
		{"Wörter & Sätze", "wörter-sätze"},
		{"***", "index"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), "slugify(%q)", tt.in)
	}
}
