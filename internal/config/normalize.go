package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

// applyEnv lets the environment override file values, matching how the
// container deployment passes parameters.
func (c *Config) applyEnv() error {
	if value, ok := lookupTrimmed("TRAPSORT_SERVICE_DIR"); ok {
		c.Paths.ServiceDir = value
	}
	if value, ok := lookupTrimmed("TRAPSORT_CLASSIFIED_SNIPS_DIR"); ok {
		c.Paths.ClassifiedSnipsDir = value
	}
	if value, ok := lookupTrimmed("TRAPSORT_OUTPUT_TABLE"); ok {
		c.Paths.OutputTable = value
	}
	if value, ok := lookupTrimmed("INDEP_EVENT_INTERVAL_MINUTES"); ok {
		minutes, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("INDEP_EVENT_INTERVAL_MINUTES: %w", err)
		}
		c.Pipeline.IndepEventIntervalMinutes = minutes
	}
	if value, ok := lookupTrimmed("LOW_CONFIDENCE_PROB_THRESHOLD"); ok {
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("LOW_CONFIDENCE_PROB_THRESHOLD: %w", err)
		}
		c.Pipeline.LowConfidenceProbThreshold = threshold
	}
	if value, ok := os.LookupEnv("PROBABILITY_BINS"); ok {
		bins, err := parseBins(value)
		if err != nil {
			return fmt.Errorf("PROBABILITY_BINS: %w", err)
		}
		c.Pipeline.ProbabilityBins = bins
	}
	if value, ok := lookupTrimmed("WORKFLOW_MODE"); ok && strings.EqualFold(value, "auto") {
		c.Pipeline.ProbabilityBins = nil
	}
	return nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func parseBins(value string) ([]int, error) {
	var bins []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bin, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bin %q: %w", part, err)
		}
		bins = append(bins, bin)
	}
	return bins, nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ServiceDir, err = expandPath(strings.TrimSpace(c.Paths.ServiceDir)); err != nil {
		return fmt.Errorf("paths.service_dir: %w", err)
	}
	base := c.Paths.ServiceDir
	if strings.TrimSpace(c.Paths.ClassifiedSnipsDir) == "" && base != "" {
		c.Paths.ClassifiedSnipsDir = filepath.Join(base, defaultClassifiedSnipsName)
	}
	if strings.TrimSpace(c.Paths.OutputTable) == "" && base != "" {
		c.Paths.OutputTable = filepath.Join(base, defaultOutputTableName)
	}
	if strings.TrimSpace(c.Paths.ClassMap) == "" && c.Paths.ClassifiedSnipsDir != "" {
		c.Paths.ClassMap = filepath.Join(c.Paths.ClassifiedSnipsDir, defaultClassMapName)
	}
	if strings.TrimSpace(c.Paths.SiteTable) == "" && base != "" {
		c.Paths.SiteTable = filepath.Join(base, defaultSiteTableName)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		c.Paths.LedgerPath = defaultLedgerPath
	}

	fields := []struct {
		name  string
		value *string
	}{
		{"paths.classified_snips_dir", &c.Paths.ClassifiedSnipsDir},
		{"paths.output_table", &c.Paths.OutputTable},
		{"paths.class_map", &c.Paths.ClassMap},
		{"paths.site_table", &c.Paths.SiteTable},
		{"paths.data_tables_dir", &c.Paths.DataTablesDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.ledger_path", &c.Paths.LedgerPath},
	}
	for _, field := range fields {
		if *field.value, err = expandPath(strings.TrimSpace(*field.value)); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	c.Paths.OutputTable = stripTableExt(c.Paths.OutputTable)
	return nil
}

func stripTableExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtCSV, ExtDB, ExtXLSX, ".pkl":
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	return path
}

func (c *Config) normalizePipeline() {
	bins := make([]int, 0, len(c.Pipeline.ProbabilityBins))
	seen := make(map[int]struct{}, len(c.Pipeline.ProbabilityBins))
	for _, bin := range c.Pipeline.ProbabilityBins {
		if _, ok := seen[bin]; ok {
			continue
		}
		seen[bin] = struct{}{}
		bins = append(bins, bin)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(bins)))
	c.Pipeline.ProbabilityBins = bins

	c.Pipeline.RemovalPolicy = strings.ToLower(strings.TrimSpace(c.Pipeline.RemovalPolicy))
	if c.Pipeline.RemovalPolicy == "" {
		c.Pipeline.RemovalPolicy = RemovalFlag
	}
	c.Pipeline.NonAnimalClasses = normalizeNames(c.Pipeline.NonAnimalClasses)
	c.Pipeline.IgnoreFolders = normalizeNames(c.Pipeline.IgnoreFolders)
}

func normalizeNames(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
