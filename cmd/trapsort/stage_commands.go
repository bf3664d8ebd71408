package main

import (
	"github.com/spf13/cobra"

	"trapsort/internal/pipeline"
)

func newBreakoutCommand(ctx *commandContext) *cobra.Command {
	breakoutCmd := &cobra.Command{
		Use:   "breakout",
		Short: "Break classifier output out for manual sorting",
	}
	breakoutCmd.AddCommand(&cobra.Command{
		Use:   "snips",
		Short: "Copy every site's snips into classified/<species>/<bin>",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runStage(cmd, pipeline.StageBreakout)
		},
	})
	return breakoutCmd
}

func newSitesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "Update per-site statistics in the site table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runStage(cmd, pipeline.StageSites)
		},
	}
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge finished service tables into one labelled table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runStage(cmd, pipeline.StageMerge)
		},
	}
}
