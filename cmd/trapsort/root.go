package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:   "trapsort",
		Short: "Reconcile camera trap detections with expert-sorted folders",
		Long: "trapsort builds a species detection table from MEWC output, breaks snips and\n" +
			"images out into species folders for expert review, and folds the expert's\n" +
			"folder moves back into the table.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	persistent.BoolVarP(&flags.verbose, "verbose", "v", false, "Log at debug level regardless of logging.level")

	rootCmd.AddCommand(
		newConfigCommand(ctx),
		newBreakoutCommand(ctx),
		newTableCommand(ctx),
		newSitesCommand(ctx),
		newMergeCommand(ctx),
		newRunsCommand(ctx),
	)
	return rootCmd
}
