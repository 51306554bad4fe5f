package testsupport

import (
	"path/filepath"
	"testing"

	"distiller/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.PIPDir = filepath.Join(base, "pips")
	cfg.Paths.SIPDir = filepath.Join(base, "sips")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers sets the transformer worker count.
func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.Workers = n
	}
}

// WithPerArticleALTO disables per-page layout output.
func WithPerArticleALTO() ConfigOption {
	return func(cfg *config.Config) {
		cfg.ALTO.PerPage = false
	}
}

// WithMaxExcluded sets the seal-time exclusion tolerance.
func WithMaxExcluded(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Compile.MaxExcluded = n
	}
}
