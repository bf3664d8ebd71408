package infer_test

import (
	"testing"
	"time"

	"trapsort/internal/classmap"
	"trapsort/internal/detection"
	"trapsort/internal/events"
	"trapsort/internal/infer"
)

var t0 = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

func at(minutes int) *time.Time {
	ts := t0.Add(time.Duration(minutes) * time.Minute)
	return &ts
}

func testMap(t *testing.T) *classmap.Map {
	t.Helper()
	m, err := classmap.New([]classmap.Entry{
		{ID: 1, Name: "cat"},
		{ID: 2, Name: "fox"},
		{ID: 3, Name: "blank"},
		{ID: 9, Name: "unknown_animal"},
	})
	if err != nil {
		t.Fatalf("classmap.New: %v", err)
	}
	return m
}

func options(t *testing.T) infer.Options {
	return infer.Options{
		Threshold: 0.2,
		ClassMap:  testMap(t),
		NonAnimal: classmap.NewSet("blank", "human", "person", "vehicle", "other_object"),
	}
}

func det(name, class string, prob float64, minute int, code detection.Provenance) detection.Detection {
	id := map[string]int{"cat": 1, "fox": 2, "blank": 3, "unknown_animal": 9}[class]
	return detection.Detection{
		CameraSite: "A", Filename: name, ClassID: id, ClassName: class,
		Prob: prob, Count: 1, Timestamp: at(minute), ExpertUpdated: code,
	}
}

func find(rows []detection.Detection, name string) detection.Detection {
	for _, r := range rows {
		if r.Filename == name {
			return r
		}
	}
	return detection.Detection{}
}

func TestResolveEndToEndScenario(t *testing.T) {
	rows := events.Assign([]detection.Detection{
		det("img1.jpg", "fox", 0.9, 0, detection.ProvenanceAI),
		det("img2.jpg", "unknown_animal", 0.3, 2, detection.ProvenanceAI),
	}, 5*time.Minute)
	if rows[0].EventID != rows[1].EventID {
		t.Fatalf("expected one event, got %d and %d", rows[0].EventID, rows[1].EventID)
	}

	got, summary := infer.Resolve(rows, options(t))
	img2 := find(got, "img2.jpg")
	if img2.ClassName != "fox" || img2.ClassID != 2 || img2.ExpertUpdated != detection.ProvenanceInferred {
		t.Fatalf("unexpected img2 %+v", img2)
	}
	if img2.Prob != 0.9 {
		t.Fatalf("expected dominant max prob, got %v", img2.Prob)
	}
	if summary.Relabels != 1 || summary.Events[infer.OutcomeInferred] != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if find(rows, "img2.jpg").ClassName != "unknown_animal" {
		t.Fatal("Resolve must not mutate its input")
	}
}

func TestResolveMajorityUsesProvenanceOfRow(t *testing.T) {
	for _, tc := range []struct {
		code, want detection.Provenance
	}{
		{detection.ProvenanceAI, detection.ProvenanceInferred},
		{detection.ProvenanceSnipMove, detection.ProvenanceInferred},
		{detection.ProvenanceNewRow, detection.ProvenanceInferredNewRow},
	} {
		rows := events.Assign([]detection.Detection{
			det("f1.jpg", "fox", 0.5, 0, detection.ProvenanceAI),
			det("f2.jpg", "fox", 0.6, 1, detection.ProvenanceAI),
			det("f3.jpg", "fox", 0.7, 2, detection.ProvenanceAI),
			det("u.jpg", "unknown_animal", -1, 3, tc.code),
		}, 5*time.Minute)
		got, _ := infer.Resolve(rows, options(t))
		u := find(got, "u.jpg")
		if u.ClassName != "fox" || u.ExpertUpdated != tc.want {
			t.Fatalf("code %d: got %+v", tc.code, u)
		}
	}
}

func TestResolveTieMeansNoInference(t *testing.T) {
	rows := events.Assign([]detection.Detection{
		det("f1.jpg", "fox", 0.8, 0, detection.ProvenanceAI),
		det("f2.jpg", "fox", 0.8, 1, detection.ProvenanceAI),
		det("c1.jpg", "cat", 0.8, 2, detection.ProvenanceAI),
		det("c2.jpg", "cat", 0.8, 3, detection.ProvenanceAI),
		det("u.jpg", "unknown_animal", 0.4, 4, detection.ProvenanceAI),
	}, 5*time.Minute)
	got, summary := infer.Resolve(rows, options(t))
	if u := find(got, "u.jpg"); u.ClassName != "unknown_animal" || u.ExpertUpdated != detection.ProvenanceAI {
		t.Fatalf("expected no inference on tie, got %+v", u)
	}
	if summary.Events[infer.OutcomeTie] != 1 {
		t.Fatalf("expected tie outcome, got %+v", summary)
	}
}

func TestResolveBelowThresholdAndNoContext(t *testing.T) {
	rows := events.Assign([]detection.Detection{
		det("f1.jpg", "fox", 0.1, 0, detection.ProvenanceAI),
		det("u1.jpg", "unknown_animal", 0.4, 1, detection.ProvenanceAI),
		// separate event with only unknowns and a blank
		det("u2.jpg", "unknown_animal", 0.4, 60, detection.ProvenanceAI),
		det("u3.jpg", "unknown_animal", 0.4, 61, detection.ProvenanceAI),
		det("b.jpg", "blank", 0.9, 62, detection.ProvenanceAI),
	}, 5*time.Minute)
	got, summary := infer.Resolve(rows, options(t))
	for _, name := range []string{"u1.jpg", "u2.jpg", "u3.jpg"} {
		if r := find(got, name); r.ClassName != "unknown_animal" {
			t.Fatalf("%s relabelled: %+v", name, r)
		}
	}
	if summary.Events[infer.OutcomeBelowThreshold] != 1 || summary.Events[infer.OutcomeNoContext] != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestResolveHumanVerifiedClassCountsAsConfident(t *testing.T) {
	rows := events.Assign([]detection.Detection{
		det("f1.jpg", "fox", detection.ProbNotScored, 0, detection.ProvenanceSnipMove),
		det("u.jpg", "unknown_animal", 0.3, 1, detection.ProvenanceAI),
	}, 5*time.Minute)
	got, _ := infer.Resolve(rows, infer.Options{Threshold: 0.9, ClassMap: testMap(t)})
	if u := find(got, "u.jpg"); u.ClassName != "fox" || u.Prob != detection.ProbNotScored {
		t.Fatalf("expected inference from human-verified row, got %+v", u)
	}
}

func TestResolveLeavesImageLevelUnknownAlone(t *testing.T) {
	rows := events.Assign([]detection.Detection{
		det("f1.jpg", "fox", 0.9, 0, detection.ProvenanceAI),
		det("u.jpg", "unknown_animal", detection.ProbNotScored, 1, detection.ProvenanceImageMove),
	}, 5*time.Minute)
	got, summary := infer.Resolve(rows, options(t))
	if u := find(got, "u.jpg"); u.ClassName != "unknown_animal" || u.ExpertUpdated != detection.ProvenanceImageMove {
		t.Fatalf("expected image-level unknown kept, got %+v", u)
	}
	if summary.Relabels != 0 {
		t.Fatalf("unexpected relabels %d", summary.Relabels)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	rows := events.Assign([]detection.Detection{
		det("f1.jpg", "fox", 0.9, 0, detection.ProvenanceAI),
		det("c1.jpg", "cat", 0.8, 1, detection.ProvenanceAI),
		det("f2.jpg", "fox", 0.7, 2, detection.ProvenanceAI),
		det("u1.jpg", "unknown_animal", 0.3, 3, detection.ProvenanceAI),
		det("u2.jpg", "unknown_animal", 0.3, 90, detection.ProvenanceNewRow),
		det("c2.jpg", "cat", 0.3, 91, detection.ProvenanceAI),
		det("f3.jpg", "fox", 0.3, 92, detection.ProvenanceAI),
	}, 5*time.Minute)
	once, _ := infer.Resolve(rows, options(t))
	twice, summary := infer.Resolve(once, options(t))
	if summary.Relabels != 0 {
		t.Fatalf("second pass relabelled %d rows", summary.Relabels)
	}
	for i := range once {
		a, b := once[i], twice[i]
		if a.ClassName != b.ClassName || a.ClassID != b.ClassID || a.Prob != b.Prob || a.ExpertUpdated != b.ExpertUpdated {
			t.Fatalf("row %d changed: %+v -> %+v", i, a, b)
		}
		if b.ExpertUpdated < rows[i].ExpertUpdated {
			t.Fatalf("row %d provenance lowered", i)
		}
	}
}
