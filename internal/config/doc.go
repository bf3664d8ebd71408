// Package config loads, normalizes, and validates trapsort's TOML
// configuration.
//
// Load resolves the config path (explicit flag, ~/.config/trapsort, or a
// project-local trapsort.toml), applies environment overrides, derives
// service-relative paths, and validates pipeline parameters. Errors are
// tagged with fault.ErrConfiguration so the CLI aborts the run.
package config
