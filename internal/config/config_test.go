package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"trapsort/internal/config"
	"trapsort/internal/fault"
)

func TestLoadDefaultConfigUsesEnvServiceDirAndDerivesPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	service := filepath.Join(tempHome, "service")
	t.Setenv("TRAPSORT_SERVICE_DIR", service)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.ServiceDir != service {
		t.Fatalf("unexpected service dir: %q", cfg.Paths.ServiceDir)
	}
	if cfg.Paths.ClassifiedSnipsDir != filepath.Join(service, "classified_snips") {
		t.Fatalf("unexpected classified snips dir: %q", cfg.Paths.ClassifiedSnipsDir)
	}
	if cfg.TablePath(config.ExtCSV) != filepath.Join(service, "species_site_table.csv") {
		t.Fatalf("unexpected table path: %q", cfg.TablePath(config.ExtCSV))
	}
	wantLogs := filepath.Join(tempHome, ".local", "share", "trapsort", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.EventInterval() != 5*time.Minute {
		t.Fatalf("unexpected event interval: %v", cfg.EventInterval())
	}
	if cfg.Pipeline.RemovalPolicy != config.RemovalFlag {
		t.Fatalf("expected flag removal policy by default, got %q", cfg.Pipeline.RemovalPolicy)
	}
	if cfg.WorkerCount() < 1 {
		t.Fatalf("expected at least one worker, got %d", cfg.WorkerCount())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if info, err := os.Stat(cfg.Paths.LogDir); err != nil || !info.IsDir() {
		t.Fatalf("expected log dir to exist: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "trapsort.toml")

	type payload struct {
		Paths struct {
			ServiceDir  string `toml:"service_dir"`
			OutputTable string `toml:"output_table"`
		} `toml:"paths"`
		Pipeline struct {
			ProbabilityBins []int   `toml:"probability_bins"`
			Interval        int     `toml:"indep_event_interval_minutes"`
			Threshold       float64 `toml:"low_confidence_prob_threshold"`
			RemovalPolicy   string  `toml:"removal_policy"`
		} `toml:"pipeline"`
	}
	custom := payload{}
	custom.Paths.ServiceDir = filepath.Join(tempDir, "svc")
	custom.Paths.OutputTable = filepath.Join(tempDir, "out", "table.csv")
	custom.Pipeline.ProbabilityBins = []int{30, 90, 60, 90}
	custom.Pipeline.Interval = 10
	custom.Pipeline.Threshold = 0.35
	custom.Pipeline.RemovalPolicy = " DROP "
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.OutputTable != filepath.Join(tempDir, "out", "table") {
		t.Fatalf("expected extension stripped from output table, got %q", cfg.Paths.OutputTable)
	}
	wantBins := []int{90, 60, 30}
	if len(cfg.Pipeline.ProbabilityBins) != len(wantBins) {
		t.Fatalf("unexpected bins %v", cfg.Pipeline.ProbabilityBins)
	}
	for i, bin := range wantBins {
		if cfg.Pipeline.ProbabilityBins[i] != bin {
			t.Fatalf("unexpected bins %v", cfg.Pipeline.ProbabilityBins)
		}
	}
	if cfg.EventInterval() != 10*time.Minute {
		t.Fatalf("unexpected interval %v", cfg.EventInterval())
	}
	if !cfg.DropMissing() {
		t.Fatal("expected drop removal policy")
	}
}

func TestEnvVarOverridesConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "trapsort.toml")
	body := "[paths]\nservice_dir = \"" + filepath.ToSlash(filepath.Join(tempDir, "file")) + "\"\n" +
		"[pipeline]\nindep_event_interval_minutes = 3\nlow_confidence_prob_threshold = 0.5\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TRAPSORT_SERVICE_DIR", filepath.Join(tempDir, "env"))
	t.Setenv("INDEP_EVENT_INTERVAL_MINUTES", "15")
	t.Setenv("LOW_CONFIDENCE_PROB_THRESHOLD", "0.4")
	t.Setenv("PROBABILITY_BINS", "80, 20")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.ServiceDir != filepath.Join(tempDir, "env") {
		t.Errorf("expected service dir from env, got %q", cfg.Paths.ServiceDir)
	}
	if cfg.Pipeline.IndepEventIntervalMinutes != 15 {
		t.Errorf("expected interval from env, got %d", cfg.Pipeline.IndepEventIntervalMinutes)
	}
	if cfg.Pipeline.LowConfidenceProbThreshold != 0.4 {
		t.Errorf("expected threshold from env, got %v", cfg.Pipeline.LowConfidenceProbThreshold)
	}
	if len(cfg.Pipeline.ProbabilityBins) != 2 || cfg.Pipeline.ProbabilityBins[0] != 80 {
		t.Errorf("expected bins from env, got %v", cfg.Pipeline.ProbabilityBins)
	}
}

func TestWorkflowModeAutoClearsBins(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TRAPSORT_SERVICE_DIR", t.TempDir())
	t.Setenv("WORKFLOW_MODE", "Auto")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Pipeline.ProbabilityBins) != 0 {
		t.Fatalf("expected bins cleared in auto mode, got %v", cfg.Pipeline.ProbabilityBins)
	}
}

func TestLoadWithoutServiceDirIsConfigurationError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TRAPSORT_SERVICE_DIR", "")

	_, _, _, err := config.Load("")
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "paths.service_dir") {
		t.Fatalf("expected service_dir hint, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path, ""); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Pipeline.IndepEventIntervalMinutes != 5 {
		t.Fatalf("expected sample interval 5, got %d", cfg.Pipeline.IndepEventIntervalMinutes)
	}
	if !strings.Contains(cfg.Paths.ServiceDir, "camtrap") {
		t.Fatalf("expected sample service dir, got %q", cfg.Paths.ServiceDir)
	}
}

func TestCreateSampleWithServiceDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	service := filepath.Join(t.TempDir(), "service_2025_spring")
	t.Setenv("TRAPSORT_SERVICE_DIR", "")
	if err := config.CreateSample(path, service); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if cfg.Paths.ServiceDir != service {
		t.Fatalf("service dir = %q, want %q", cfg.Paths.ServiceDir, service)
	}
	if cfg.Paths.ClassifiedSnipsDir != filepath.Join(service, "classified_snips") {
		t.Fatalf("classified snips dir = %q", cfg.Paths.ClassifiedSnipsDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.Paths.ServiceDir = "/svc"
		cfg.Paths.OutputTable = "/svc/table"
		cfg.Paths.ClassifiedSnipsDir = "/svc/classified_snips"
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg = base()
	cfg.Pipeline.IndepEventIntervalMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive interval")
	}

	cfg = base()
	cfg.Pipeline.LowConfidenceProbThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for threshold above 1")
	}

	cfg = base()
	cfg.Pipeline.RemovalPolicy = "archive"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown removal policy")
	}

	cfg = base()
	cfg.Pipeline.ProbabilityBins = []int{120}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bin above 100")
	}
}
