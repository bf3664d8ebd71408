package tablestore

import (
	"encoding/csv"
	"io"
	"strconv"

	"trapsort/internal/detection"
)

// WriteMergedCSV writes a multi-service table in detection.MergedColumns
// order.
func WriteMergedCSV(w io.Writer, rows []detection.Sourced) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(detection.MergedColumns); err != nil {
		return err
	}
	for _, row := range rows {
		values := map[string]string{
			detection.ColCameraSite:    row.CameraSite,
			detection.ColFilename:      row.Filename,
			detection.ColSnipName:      row.SnipName,
			detection.ColClassID:       strconv.Itoa(row.ClassID),
			detection.ColClassName:     row.ClassName,
			detection.ColProb:          formatFloat(row.Prob),
			detection.ColConf:          formatFloat(row.Conf),
			detection.ColCount:         strconv.Itoa(row.Count),
			detection.ColTimestamp:     FormatTimestamp(row.Timestamp),
			detection.ColFlashFired:    formatFlash(row.Flash),
			detection.ColExpertUpdated: strconv.Itoa(int(row.ExpertUpdated)),
			detection.ColEvent:         strconv.Itoa(row.EventID),
			detection.ColFlag:          string(row.Flag),
			detection.ColSource:        row.Source,
		}
		record := make([]string, len(detection.MergedColumns))
		for i, col := range detection.MergedColumns {
			record[i] = values[col]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveMergedCSV writes a merged table to path atomically.
func SaveMergedCSV(path string, rows []detection.Sourced) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteMergedCSV(w, rows)
	})
}
