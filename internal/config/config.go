package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"trapsort/internal/fault"
)

//go:embed sample_config.toml
var sampleConfig string

const samplePlaceholder = `"~/camtrap/service_2024_autumn"`

// Paths locates the service tree, the human-sorted breakout, and the
// generated tables.
type Paths struct {
	ServiceDir         string `toml:"service_dir"`
	ClassifiedSnipsDir string `toml:"classified_snips_dir"`
	// OutputTable is the table path without extension; .csv, .db and .xlsx
	// siblings are derived from it.
	OutputTable   string `toml:"output_table"`
	ClassMap      string `toml:"class_map"`
	SiteTable     string `toml:"site_table"`
	DataTablesDir string `toml:"data_tables_dir"`
	LogDir        string `toml:"log_dir"`
	LedgerPath    string `toml:"ledger_path"`
}

// Pipeline holds the reconciliation and inference parameters.
type Pipeline struct {
	ProbabilityBins            []int    `toml:"probability_bins"`
	IndepEventIntervalMinutes  int      `toml:"indep_event_interval_minutes"`
	LowConfidenceProbThreshold float64  `toml:"low_confidence_prob_threshold"`
	RemovalPolicy              string   `toml:"removal_policy"`
	NonAnimalClasses           []string `toml:"non_animal_classes"`
	IgnoreFolders              []string `toml:"ignore_folders"`
	Workers                    int      `toml:"workers"`
	MTimeFallback              bool     `toml:"mtime_fallback"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for trapsort. A loaded config
// is treated as immutable for the duration of a run.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Pipeline Pipeline `toml:"pipeline"`
	Logging  Logging  `toml:"logging"`
}

// Table file extensions.
const (
	ExtCSV  = ".csv"
	ExtDB   = ".db"
	ExtXLSX = ".xlsx"
)

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, fault.Wrap(fault.ErrConfiguration, "config", "resolve path", "", err)
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fault.Wrap(fault.ErrConfiguration, "config", "open", resolvedPath, err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fault.Wrap(fault.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, fault.Wrap(fault.ErrConfiguration, "config", "normalize", "", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, fault.Wrap(fault.ErrConfiguration, "config", "validate", "", err)
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("trapsort.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a stage writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, filepath.Dir(c.Paths.OutputTable), filepath.Dir(c.Paths.LedgerPath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TablePath returns the output table path with the given extension.
func (c *Config) TablePath(ext string) string {
	return c.Paths.OutputTable + ext
}

// LockPath returns the path of the table writer lock file.
func (c *Config) LockPath() string {
	return c.Paths.OutputTable + ".lock"
}

// EventInterval returns the independent event gap as a duration.
func (c *Config) EventInterval() time.Duration {
	return time.Duration(c.Pipeline.IndepEventIntervalMinutes) * time.Minute
}

// WorkerCount resolves the metadata worker pool size.
func (c *Config) WorkerCount() int {
	if c.Pipeline.Workers > 0 {
		return c.Pipeline.Workers
	}
	return runtime.NumCPU()
}

// DropMissing reports whether rows absent from the folder tree are deleted
// rather than flagged.
func (c *Config) DropMissing() bool {
	return c.Pipeline.RemovalPolicy == RemovalDrop
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated sample configuration to path. A non-empty
// serviceDir replaces the placeholder service directory.
func CreateSample(path, serviceDir string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	body := sampleConfig
	if serviceDir = strings.TrimSpace(serviceDir); serviceDir != "" {
		body = strings.Replace(body, samplePlaceholder, strconv.Quote(filepath.ToSlash(serviceDir)), 1)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
