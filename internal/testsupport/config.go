package testsupport

import (
	"path/filepath"
	"testing"

	"trapsort/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The service tree lives under <base>/service; logs and the run ledger live
// outside it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	service := filepath.Join(base, "service")
	cfgVal.Paths.ServiceDir = service
	cfgVal.Paths.ClassifiedSnipsDir = filepath.Join(service, "classified_snips")
	cfgVal.Paths.OutputTable = filepath.Join(service, "species_site_table")
	cfgVal.Paths.ClassMap = filepath.Join(service, "classified_snips", "class_map.yaml")
	cfgVal.Paths.SiteTable = filepath.Join(service, "site_table.csv")
	cfgVal.Paths.DataTablesDir = filepath.Join(base, "data_tables")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "logs", "runs.db")
	cfgVal.Pipeline.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBins overrides the probability bins. No bins means a flat breakout.
func WithBins(bins ...int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.ProbabilityBins = bins
	}
}

// WithRemovalPolicy sets the removal policy.
func WithRemovalPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.RemovalPolicy = policy
	}
}

// WithInference sets the event interval and the low-confidence threshold.
func WithInference(intervalMinutes int, threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.IndepEventIntervalMinutes = intervalMinutes
		b.cfg.Pipeline.LowConfidenceProbThreshold = threshold
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ServiceDir)
}
