package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"trapsort/internal/pipeline"
)

func printReport(out io.Writer, runID string, report *pipeline.Report) {
	fmt.Fprintf(out, "%s finished (run %s)\n", report.Stage, shortID(runID))

	counts := newGrid(label("Count"), number("Value"))
	for _, key := range report.CountKeys() {
		counts.add(key, strconv.Itoa(report.Counts[key]))
	}
	if !counts.empty() {
		fmt.Fprintln(out, counts.render(out))
	}

	if names := report.FailedNames(); len(names) > 0 {
		failed := newGrid(label("Site"), label("Error"))
		for _, name := range names {
			failed.add(name, report.Failed[name].Error())
		}
		fmt.Fprintf(out, "%d failed:\n", len(names))
		fmt.Fprintln(out, failed.render(out))
	}

	if kinds := report.Tally.Kinds(); len(kinds) > 0 {
		names := make([]string, 0, len(kinds))
		for kind := range kinds {
			names = append(names, kind)
		}
		sort.Strings(names)
		for _, kind := range names {
			fmt.Fprintf(out, "Skipped %d %s file(s)\n", kinds[kind], kind)
		}
	}
	if n := len(report.Orphans); n > 0 {
		fmt.Fprintf(out, "%d file(s) in the tree match no row\n", n)
	}
	if report.Output != "" {
		fmt.Fprintf(out, "Output: %s\n", report.Output)
	}
}
