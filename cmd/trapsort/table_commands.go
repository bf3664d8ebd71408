package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"trapsort/internal/config"
	"trapsort/internal/detection"
	"trapsort/internal/pipeline"
	"trapsort/internal/scanner"
	"trapsort/internal/tablestore"
)

func newTableCommand(ctx *commandContext) *cobra.Command {
	tableCmd := &cobra.Command{
		Use:   "table",
		Short: "Create, update and inspect the detection table",
	}

	tableCmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Build the table from classifier output and the sorted snips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runStage(cmd, pipeline.StageCreate)
		},
	})
	tableCmd.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Apply the sorted animal folders to the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runStage(cmd, pipeline.StageUpdate)
		},
	})
	tableCmd.AddCommand(newTableShowCommand(ctx))
	tableCmd.AddCommand(newTableExportCommand(ctx))

	return tableCmd
}

type classSummary struct {
	Site    string `json:"camera_site"`
	Class   string `json:"class_name"`
	Rows    int    `json:"rows"`
	Images  int    `json:"images"`
	Events  int    `json:"events"`
	Expert  int    `json:"expert_updated"`
	Missing int    `json:"missing"`
}

func summarizeTable(rows []detection.Detection, site string) []classSummary {
	type key struct{ site, class string }
	type acc struct {
		classSummary
		images map[string]struct{}
		events map[int]struct{}
	}
	byKey := make(map[key]*acc)
	for _, row := range rows {
		if site != "" && row.CameraSite != site {
			continue
		}
		k := key{row.CameraSite, row.ClassName}
		a, ok := byKey[k]
		if !ok {
			a = &acc{
				classSummary: classSummary{Site: row.CameraSite, Class: row.ClassName},
				images:       make(map[string]struct{}),
				events:       make(map[int]struct{}),
			}
			byKey[k] = a
		}
		a.Rows++
		a.images[scanner.BaseFilename(row.Filename)] = struct{}{}
		a.events[row.EventID] = struct{}{}
		if row.ExpertUpdated != detection.ProvenanceAI {
			a.Expert++
		}
		if row.Flag == detection.FlagMissing {
			a.Missing++
		}
	}
	out := make([]classSummary, 0, len(byKey))
	for _, a := range byKey {
		a.Images = len(a.images)
		a.Events = len(a.events)
		out = append(out, a.classSummary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Site != out[j].Site {
			return out[i].Site < out[j].Site
		}
		return out[i].Class < out[j].Class
	})
	return out
}

func newTableShowCommand(ctx *commandContext) *cobra.Command {
	var site string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Summarise the table by site and class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows, err := tablestore.New(cfg.Paths.OutputTable).Load(cmd.Context())
			if err != nil {
				return err
			}
			summary := summarizeTable(rows, detection.NormalizeSite(site))
			if jsonOut {
				data, err := json.MarshalIndent(summary, "", "  ")
				if err != nil {
					return fmt.Errorf("encode summary: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}

			out := cmd.OutOrStdout()
			if len(summary) == 0 {
				fmt.Fprintln(out, "No rows")
				return nil
			}
			g := newGrid(label("Site"), label("Class"), number("Rows"), number("Images"), number("Events"), number("Expert"), number("Missing")).withTotals()
			for _, s := range summary {
				g.add(
					s.Site,
					s.Class,
					strconv.Itoa(s.Rows),
					strconv.Itoa(s.Images),
					strconv.Itoa(s.Events),
					strconv.Itoa(s.Expert),
					strconv.Itoa(s.Missing),
				)
			}
			fmt.Fprintln(out, g.render(out))
			fmt.Fprintf(out, "%d rows\n", len(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "Only summarise one camera site")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newTableExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the table as CSV, SQLite or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			format = strings.ToLower(strings.TrimSpace(format))
			ext, err := exportExt(format)
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outPath)
			if target == "" {
				target = cfg.TablePath(ext)
			} else if target, err = config.ExpandPath(target); err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}

			rows, err := tablestore.New(cfg.Paths.OutputTable).Load(cmd.Context())
			if err != nil {
				return err
			}
			switch ext {
			case config.ExtCSV:
				err = tablestore.SaveCSV(target, rows)
			case config.ExtDB:
				err = exportDB(cmd, target, rows)
			case config.ExtXLSX:
				err = tablestore.ExportXLSX(target, rows)
			}
			if err != nil {
				return fmt.Errorf("export %s: %w", format, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", len(rows), filepath.Clean(target))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "xlsx", "Export format: csv, db or xlsx")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination path (defaults next to the table)")
	return cmd
}

func exportExt(format string) (string, error) {
	switch format {
	case "csv":
		return config.ExtCSV, nil
	case "db", "sqlite":
		return config.ExtDB, nil
	case "xlsx", "excel":
		return config.ExtXLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, db or xlsx)", format)
	}
}

func exportDB(cmd *cobra.Command, path string, rows []detection.Detection) error {
	db, err := tablestore.OpenDB(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Replace(cmd.Context(), rows)
}
