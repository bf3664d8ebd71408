package detection

// Column names of the persisted table, in output order.
const (
	ColCameraSite    = "camera_site"
	ColFilename      = "filename"
	ColSnipName      = "snip_name"
	ColClassID       = "class_id"
	ColClassName     = "class_name"
	ColProb          = "prob"
	ColConf          = "conf"
	ColCount         = "count"
	ColTimestamp     = "timestamp"
	ColFlashFired    = "flash_fired"
	ColExpertUpdated = "expert_updated"
	ColEvent         = "event"
	ColFlag          = "flag"
)

// Columns lists every persisted column in order.
var Columns = []string{
	ColCameraSite,
	ColFilename,
	ColSnipName,
	ColClassID,
	ColClassName,
	ColProb,
	ColConf,
	ColCount,
	ColTimestamp,
	ColFlashFired,
	ColExpertUpdated,
	ColEvent,
	ColFlag,
}

// RequiredColumns must be present when a table is loaded. Supplementary
// columns (snip_name, conf, event, flag) fall back to zero values.
var RequiredColumns = []string{
	ColCameraSite,
	ColFilename,
	ColClassID,
	ColClassName,
	ColProb,
	ColCount,
	ColTimestamp,
	ColFlashFired,
	ColExpertUpdated,
}

// ColSource labels the service table a merged row came from.
const ColSource = "source"

// MergedColumns is the column order of a merged multi-service table: the
// analysis keys first and the source label last.
var MergedColumns = func() []string {
	lead := []string{ColCameraSite, ColClassName, ColTimestamp}
	out := append([]string(nil), lead...)
	for _, col := range Columns {
		if col == ColCameraSite || col == ColClassName || col == ColTimestamp {
			continue
		}
		out = append(out, col)
	}
	return append(out, ColSource)
}()
