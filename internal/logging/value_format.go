package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

const (
	// Record times are the operator's local clock.
	recordTimeLayout = "2006-01-02 15:04:05"
	// Time-valued attributes are capture times: naive wall-clock values kept
	// in UTC, printed in the table's layout without zone conversion.
	captureTimeLayout = "02/01/2006 15:04:05"
)

func recordTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(recordTimeLayout)
}

// rawValue renders v without quoting.
func rawValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		if v.Time().IsZero() {
			return "NA"
		}
		return v.Time().Format(captureTimeLayout)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// quotedValue renders v for a key=value pair, quoting text that would
// otherwise break the pair apart.
func quotedValue(v slog.Value) string {
	s := rawValue(v)
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}
