package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ServiceDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.service_dir is required. Set TRAPSORT_SERVICE_DIR or edit %s (create with 'trapsort config init')", defaultPath)
	}
	if strings.TrimSpace(c.Paths.OutputTable) == "" {
		return errors.New("paths.output_table must be set")
	}
	if strings.TrimSpace(c.Paths.ClassifiedSnipsDir) == "" {
		return errors.New("paths.classified_snips_dir must be set")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	for i, bin := range c.Pipeline.ProbabilityBins {
		if bin < 0 || bin > 100 {
			return fmt.Errorf("pipeline.probability_bins[%d] must be between 0 and 100, got %d", i, bin)
		}
	}
	if c.Pipeline.IndepEventIntervalMinutes <= 0 {
		return errors.New("pipeline.indep_event_interval_minutes must be positive")
	}
	if c.Pipeline.LowConfidenceProbThreshold < 0 || c.Pipeline.LowConfidenceProbThreshold > 1 {
		return errors.New("pipeline.low_confidence_prob_threshold must be between 0 and 1")
	}
	switch c.Pipeline.RemovalPolicy {
	case RemovalFlag, RemovalDrop:
	default:
		return fmt.Errorf("pipeline.removal_policy must be %q or %q, got %q", RemovalFlag, RemovalDrop, c.Pipeline.RemovalPolicy)
	}
	if c.Pipeline.Workers < 0 {
		return errors.New("pipeline.workers must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
