package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.ServiceDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConfigValidateCheckPaths(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate", "--check-paths"}, env.configPath)
	if err == nil {
		t.Fatal("expected missing site table and classified dir to fail the path check")
	}
	requireContains(t, out, "FAIL")
	requireContains(t, out, "site table")
}

func TestConfigInitWritesServiceDir(t *testing.T) {
	setupCLITestEnv(t)
	service := filepath.Join(t.TempDir(), "service_2025_spring")
	target := filepath.Join(t.TempDir(), "trapsort.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target, "--service-dir", service}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, service)

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Service directory: "+service)
}
