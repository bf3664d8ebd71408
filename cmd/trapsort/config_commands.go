package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"trapsort/internal/config"
	"trapsort/internal/pipeline"
	"trapsort/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath, serviceDir string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write an annotated sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				switch _, statErr := os.Stat(target); {
				case statErr == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !os.IsNotExist(statErr):
					return fmt.Errorf("check config path: %w", statErr)
				}
			}

			if serviceDir != "" {
				if serviceDir, err = config.ExpandPath(serviceDir); err != nil {
					return fmt.Errorf("resolve service dir: %w", err)
				}
			}
			if err := config.CreateSample(target, serviceDir); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			if serviceDir == "" {
				fmt.Fprintln(out, "Set paths.service_dir (or export TRAPSORT_SERVICE_DIR) to the service folder before running a stage.")
			} else {
				fmt.Fprintf(out, "Service directory: %s\n", serviceDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().StringVar(&serviceDir, "service-dir", "", "Service folder to write into the sample")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing configuration file")
	return cmd
}

// initTarget resolves where `config init` writes, defaulting to the user
// config location.
func initTarget(flagValue string) (string, error) {
	target := strings.TrimSpace(flagValue)
	if target == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var checkPaths bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				if _, statErr := os.Stat(ctx.configPath); statErr == nil {
					fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
				} else {
					fmt.Fprintln(out, "Config file did not exist; defaults were used")
				}
			}
			fmt.Fprintf(out, "Service directory: %s\n", cfg.Paths.ServiceDir)
			fmt.Fprintf(out, "Output table: %s\n", cfg.Paths.OutputTable)
			if !checkPaths {
				fmt.Fprintln(out, "Configuration valid")
				return nil
			}

			checks := newGrid(label("Stage"), label("Check"), label("Status"), label("Detail"))
			var results []preflight.Result
			for _, stage := range pipeline.Stages() {
				for _, res := range preflight.Run(stage.Requirements(cfg)) {
					status := "ok"
					if !res.Passed {
						status = "FAIL"
					}
					checks.add(stage.Name, res.Name, status, res.Detail)
					results = append(results, res)
				}
			}
			fmt.Fprintln(out, checks.render(out))
			if err := preflight.Err(results); err != nil {
				return err
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkPaths, "check-paths", false, "Check the paths every stage needs")
	return cmd
}
