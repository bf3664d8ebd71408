package assemble

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"trapsort/internal/classmap"
	"trapsort/internal/detection"
	"trapsort/internal/fault"
)

// MEWCFile is the classifier output file in every camera-site folder.
const MEWCFile = "mewc_out.csv"

// MEWC column names.
const (
	mewcFilename  = "filename"
	mewcRandName  = "rand_name"
	mewcClassID   = "class_id"
	mewcClassName = "class_name"
	mewcProb      = "prob"
	mewcClassRank = "class_rank"
	mewcConf      = "conf"
	mewcTaken     = "date_time_orig"
)

var mewcRequired = []string{mewcFilename, mewcRandName, mewcClassName, mewcProb}

// exifLayout is the capture time layout the classifier copies from EXIF.
const exifLayout = "2006:01:02 15:04:05"

// snipPrefixLen is how many leading characters of a renamed snip must differ
// from its source image name.
const snipPrefixLen = 8

// ReadMEWC parses one site's classifier output and applies the import sanity
// checks: the file has rows, snips were renamed, and only top-ranked classes
// were exported. Failures are integrity diagnostics for site.
func ReadMEWC(path, site string) ([]detection.Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Integrity(site, "mewc-present", "classifier output missing; run the classifier first").WithCause(err)
	}
	defer f.Close()
	return parseMEWC(f, site)
}

func parseMEWC(r io.Reader, site string) ([]detection.Detection, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fault.Integrity(site, "mewc-not-empty", MEWCFile+" is empty")
	}
	if err != nil {
		return nil, fault.Wrap(fault.ErrSchema, "import", "read header", site, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range mewcRequired {
		if _, ok := index[col]; !ok {
			return nil, fault.Wrap(fault.ErrSchema, "import", "check columns",
				fmt.Sprintf("%s: %s lacks column %s", site, MEWCFile, col), nil)
		}
	}

	var (
		rows    []detection.Detection
		maxRank int
		line    = 1
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fault.Wrap(fault.ErrSchema, "import", "read row", fmt.Sprintf("%s line %d", site, line), err)
		}
		cell := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if len(rows) == 0 {
			if err := checkRenamed(site, cell(mewcFilename), cell(mewcRandName)); err != nil {
				return nil, err
			}
		}
		if v := cell(mewcClassRank); v != "" {
			rank, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fault.Wrap(fault.ErrSchema, "import", "parse class_rank", fmt.Sprintf("%s line %d", site, line), err)
			}
			maxRank = max(maxRank, int(rank))
		}
		row, err := mewcRow(site, cell)
		if err != nil {
			return nil, fault.Wrap(fault.ErrSchema, "import", "parse row", fmt.Sprintf("%s line %d", site, line), err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fault.Integrity(site, "mewc-not-empty", MEWCFile+" has no rows")
	}
	if maxRank > 1 {
		return nil, fault.Integrity(site, "top-class-only",
			fmt.Sprintf("class_rank reaches %d; export only the top-ranked class per snip", maxRank))
	}
	return rows, nil
}

func checkRenamed(site, filename, randName string) error {
	if len(filename) < snipPrefixLen || len(randName) < snipPrefixLen {
		return fault.Integrity(site, "snips-renamed", "filename or rand_name is too short to verify snip renaming").WithFile(filename)
	}
	if filename[:snipPrefixLen] == randName[:snipPrefixLen] {
		return fault.Integrity(site, "snips-renamed",
			"snips were not renamed; rerun the classifier with snip renaming enabled").WithFile(filename)
	}
	return nil
}

func mewcRow(site string, cell func(string) string) (detection.Detection, error) {
	row := detection.Detection{
		CameraSite:    site,
		Filename:      cell(mewcFilename),
		SnipName:      cell(mewcRandName),
		ClassName:     classmap.Canonical(cell(mewcClassName)),
		Count:         1,
		ExpertUpdated: detection.ProvenanceAI,
	}
	if row.Filename == "" || row.ClassName == "" {
		return row, errors.New("filename and class_name are required")
	}
	var err error
	if v := cell(mewcClassID); v != "" {
		id, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return row, fmt.Errorf("class_id: %w", err)
		}
		row.ClassID = int(id)
	} else {
		row.ClassID = -1
	}
	if row.Prob, err = strconv.ParseFloat(cell(mewcProb), 64); err != nil {
		return row, fmt.Errorf("prob: %w", err)
	}
	if v := cell(mewcConf); v != "" {
		if row.Conf, err = strconv.ParseFloat(v, 64); err != nil {
			return row, fmt.Errorf("conf: %w", err)
		}
	}
	if v := cell(mewcTaken); v != "" {
		if ts, err := time.ParseInLocation(exifLayout, v, time.UTC); err == nil {
			row.Timestamp = &ts
		}
	}
	return row, nil
}
