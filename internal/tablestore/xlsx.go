package tablestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"trapsort/internal/detection"
	"trapsort/internal/scanner"
)

// Sheet names written by ExportXLSX.
const (
	SheetDetections = "detections"
	SheetSummary    = "summary"
)

var summaryHeader = []any{"camera_site", "class_name", "detections", "images", "events"}

// ExportXLSX writes rows to a workbook with a detections sheet holding every
// column and a summary sheet of per-site species totals. Timestamps use the
// CSV layout so field teams see the same text in both files.
func ExportXLSX(path string, rows []detection.Detection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetDetections); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := writeDetectionSheet(f, rows); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, rows); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeDetectionSheet(f *excelize.File, rows []detection.Detection) error {
	sw, err := f.NewStreamWriter(SheetDetections)
	if err != nil {
		return fmt.Errorf("open detections sheet: %w", err)
	}
	header := make([]any, len(detection.Columns))
	for i, col := range detection.Columns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, xlsxRecord(row)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush detections sheet: %w", err)
	}
	return nil
}

func xlsxRecord(row detection.Detection) []any {
	var timestamp, flash any
	if row.Timestamp != nil {
		timestamp = row.Timestamp.Format(TimestampLayout)
	}
	switch row.Flash {
	case detection.FlashOn:
		flash = 1
	case detection.FlashOff:
		flash = 0
	}
	return []any{
		row.CameraSite,
		row.Filename,
		row.SnipName,
		row.ClassID,
		row.ClassName,
		row.Prob,
		row.Conf,
		row.Count,
		timestamp,
		flash,
		int(row.ExpertUpdated),
		row.EventID,
		string(row.Flag),
	}
}

type summaryKey struct {
	site  string
	class string
}

type summaryTotals struct {
	detections int
	images     map[string]struct{}
	events     map[int]struct{}
}

func writeSummarySheet(f *excelize.File, rows []detection.Detection) error {
	totals := make(map[summaryKey]*summaryTotals)
	for _, row := range rows {
		key := summaryKey{site: row.CameraSite, class: row.ClassName}
		t, ok := totals[key]
		if !ok {
			t = &summaryTotals{images: make(map[string]struct{}), events: make(map[int]struct{})}
			totals[key] = t
		}
		t.detections++
		t.images[scanner.BaseFilename(row.Filename)] = struct{}{}
		t.events[row.EventID] = struct{}{}
	}
	keys := make([]summaryKey, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].site != keys[j].site {
			return keys[i].site < keys[j].site
		}
		return keys[i].class < keys[j].class
	})

	sw, err := f.NewStreamWriter(SheetSummary)
	if err != nil {
		return fmt.Errorf("open summary sheet: %w", err)
	}
	if err := sw.SetRow("A1", summaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for i, key := range keys {
		t := totals[key]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, []any{key.site, key.class, t.detections, len(t.images), len(t.events)}); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush summary sheet: %w", err)
	}
	return nil
}
