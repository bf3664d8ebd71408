package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trapsort/internal/ledger"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded stage runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(cmd.Context(), func(store *ledger.Store) error {
				runs, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				g := newGrid(label("Run"), label("Stage"), label("Status"), label("Started"), label("Duration"), number("Rows"))
				for _, run := range runs {
					g.add(
						shortID(run.ID),
						run.Stage,
						string(run.Status),
						run.StartedAt.Local().Format("2006-01-02 15:04:05"),
						formatDuration(run.Duration()),
						strconv.Itoa(run.Summary["rows"]),
					)
				}
				fmt.Fprintln(out, g.render(out))
				return nil
			})
		},
	}
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	return runsCmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run's summary and diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(cmd.Context(), func(store *ledger.Store) error {
				run, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				diags, err := store.Diagnostics(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:      %s\n", run.ID)
				fmt.Fprintf(out, "Stage:    %s\n", run.Stage)
				fmt.Fprintf(out, "Status:   %s\n", run.Status)
				fmt.Fprintf(out, "Service:  %s\n", run.ServiceDir)
				fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
				fmt.Fprintf(out, "Duration: %s\n", formatDuration(run.Duration()))
				if run.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:    %s\n", run.ErrorMessage)
				}

				if len(run.Summary) > 0 {
					keys := make([]string, 0, len(run.Summary))
					for k := range run.Summary {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					g := newGrid(label("Count"), number("Value"))
					for _, k := range keys {
						g.add(k, strconv.Itoa(run.Summary[k]))
					}
					fmt.Fprintln(out, g.render(out))
				}
				if len(diags) > 0 {
					g := newGrid(label("Scope"), label("Site"), label("File"), label("Class"), label("Invariant"), label("Message"))
					for _, d := range diags {
						classID := ""
						if d.ClassID != nil {
							classID = strconv.Itoa(*d.ClassID)
						}
						g.add(d.Scope, d.Site, d.File, classID, d.Invariant, d.Message)
					}
					fmt.Fprintln(out, g.render(out))
				}
				return nil
			})
		},
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
