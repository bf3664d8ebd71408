package detection_test

import (
	"testing"
	"time"

	"trapsort/internal/detection"
)

func TestProvenanceRaiseNeverLowers(t *testing.T) {
	cases := []struct {
		have, next, want detection.Provenance
	}{
		{detection.ProvenanceAI, detection.ProvenanceSnipMove, detection.ProvenanceSnipMove},
		{detection.ProvenanceImageMove, detection.ProvenanceInferred, detection.ProvenanceImageMove},
		{detection.ProvenanceNewRow, detection.ProvenanceImageMove, detection.ProvenanceNewRow},
		{detection.ProvenanceInferred, detection.ProvenanceInferred, detection.ProvenanceInferred},
	}
	for _, tc := range cases {
		if got := tc.have.Raise(tc.next); got != tc.want {
			t.Fatalf("%v.Raise(%v) = %v, want %v", tc.have, tc.next, got, tc.want)
		}
	}
}

func TestSortBySiteTimePutsMissingTimestampsLast(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)
	rows := []detection.Detection{
		{CameraSite: "b", Filename: "x.jpg", Timestamp: &t0},
		{CameraSite: "a", Filename: "nil.jpg"},
		{CameraSite: "a", Filename: "late.jpg", Timestamp: &t1},
		{CameraSite: "a", Filename: "early.jpg", Timestamp: &t0},
	}
	detection.SortBySiteTime(rows)

	want := []string{"early.jpg", "late.jpg", "nil.jpg", "x.jpg"}
	for i, name := range want {
		if rows[i].Filename != name {
			t.Fatalf("position %d: got %q want %q", i, rows[i].Filename, name)
		}
	}
}

func TestCloneCopiesTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	row := detection.Detection{Timestamp: &ts}
	clone := row.Clone()
	*clone.Timestamp = clone.Timestamp.Add(time.Hour)
	if !row.Timestamp.Equal(ts) {
		t.Fatal("clone shares timestamp storage with original")
	}
}
