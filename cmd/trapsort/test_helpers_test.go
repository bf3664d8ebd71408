package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trapsort/internal/config"
	"trapsort/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	siteDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithBins(90, 50, 0))
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("TRAPSORT_SERVICE_DIR", "")

	siteDir := filepath.Join(cfg.Paths.ServiceDir, "rg_s1_c1")
	testsupport.WriteMEWC(t, siteDir, []testsupport.MEWCRow{
		{Filename: "I__00001-0.JPG", RandName: "aaaaaaaa.jpg", ClassID: 2, ClassName: "fox", Prob: 0.95, Conf: 0.9, Taken: testsupport.At(2024, time.March, 1, 10, 0, 0)},
		{Filename: "I__00002-0.JPG", RandName: "bbbbbbbb.jpg", ClassID: 3, ClassName: "cat", Prob: 0.6, Conf: 0.7, Taken: testsupport.At(2024, time.March, 2, 22, 0, 0)},
	})
	testsupport.WriteFile(t, filepath.Join(siteDir, "snips", "aaaaaaaa.jpg"))
	testsupport.WriteFile(t, filepath.Join(siteDir, "snips", "bbbbbbbb.jpg"))
	testsupport.WriteImage(t, filepath.Join(siteDir, "animal", "I__00001.JPG"), testsupport.ImageMeta{Taken: testsupport.At(2024, time.March, 1, 10, 0, 0)})
	testsupport.WriteImage(t, filepath.Join(siteDir, "animal", "I__00002.JPG"), testsupport.ImageMeta{Taken: testsupport.At(2024, time.March, 2, 22, 0, 0)})

	configPath := filepath.Join(base, "trapsort.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, siteDir: siteDir}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	bins := make([]string, 0, len(cfg.Pipeline.ProbabilityBins))
	for _, bin := range cfg.Pipeline.ProbabilityBins {
		bins = append(bins, fmt.Sprint(bin))
	}
	content := fmt.Sprintf(
		"[paths]\nservice_dir = %q\nclassified_snips_dir = %q\noutput_table = %q\nsite_table = %q\ndata_tables_dir = %q\nlog_dir = %q\nledger_path = %q\n\n[pipeline]\nprobability_bins = [%s]\nworkers = 2\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.ServiceDir,
		cfg.Paths.ClassifiedSnipsDir,
		cfg.Paths.OutputTable,
		cfg.Paths.SiteTable,
		cfg.Paths.DataTablesDir,
		cfg.Paths.LogDir,
		cfg.Paths.LedgerPath,
		strings.Join(bins, ", "),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
