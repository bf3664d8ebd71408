package events

import (
	"sort"
	"time"

	"trapsort/internal/detection"
	"trapsort/internal/scanner"
)

// Key identifies one event within a table.
type Key struct {
	Site string
	ID   int
}

// Assign returns a copy of rows ordered by camera site then timestamp, with
// EventID set. Within a site a new event starts whenever the gap to the
// previous timestamp is strictly greater than interval; equal timestamps
// share an event. Rows without a timestamp each get their own event after
// every timestamped event of their site. Equal timestamps keep their input
// order.
func Assign(rows []detection.Detection, interval time.Duration) []detection.Detection {
	out := detection.CloneAll(rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CameraSite != b.CameraSite {
			return a.CameraSite < b.CameraSite
		}
		switch {
		case a.Timestamp == nil:
			return false
		case b.Timestamp == nil:
			return true
		}
		return a.Timestamp.Before(*b.Timestamp)
	})

	for start := 0; start < len(out); {
		end := start
		for end < len(out) && out[end].CameraSite == out[start].CameraSite {
			end++
		}
		assignSite(out[start:end], interval)
		start = end
	}
	return out
}

func assignSite(site []detection.Detection, interval time.Duration) {
	id := 0
	var prev *time.Time
	for i := range site {
		ts := site[i].Timestamp
		switch {
		case ts == nil:
			id++
		case prev == nil || ts.Sub(*prev) > interval:
			id++
		}
		site[i].EventID = id
		if ts != nil {
			prev = ts
		}
	}
}

// Group returns the events of rows in first-seen order and the row indices
// belonging to each.
func Group(rows []detection.Detection) ([]Key, map[Key][]int) {
	var keys []Key
	members := make(map[Key][]int)
	for i, row := range rows {
		key := Key{Site: row.CameraSite, ID: row.EventID}
		if _, ok := members[key]; !ok {
			keys = append(keys, key)
		}
		members[key] = append(members[key], i)
	}
	return keys, members
}

// CountPerSite returns the number of distinct events at each site.
func CountPerSite(rows []detection.Detection) map[string]int {
	keys, _ := Group(rows)
	out := make(map[string]int)
	for _, key := range keys {
		out[key.Site]++
	}
	return out
}

type imageClass struct {
	site  string
	image string
	class string
}

// CountPerImage returns a copy of rows with Count set to the number of rows
// sharing the camera site, base image filename and class name. Rows are
// annotated, never collapsed.
//
// The grouping is per image, not per (camera site, class, event, timestamp):
// two images with the same capture second in one event keep separate counts,
// and no duplicate rows are merged away. Sum Count over one row per image
// and class to get animals per event.
func CountPerImage(rows []detection.Detection) []detection.Detection {
	counts := make(map[imageClass]int, len(rows))
	keyOf := func(row detection.Detection) imageClass {
		return imageClass{site: row.CameraSite, image: scanner.BaseFilename(row.Filename), class: row.ClassName}
	}
	for _, row := range rows {
		counts[keyOf(row)]++
	}
	out := detection.CloneAll(rows)
	for i := range out {
		out[i].Count = counts[keyOf(out[i])]
	}
	return out
}
