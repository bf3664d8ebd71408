package reconcile_test

import (
	"errors"
	"testing"

	"trapsort/internal/classmap"
	"trapsort/internal/detection"
	"trapsort/internal/fault"
	"trapsort/internal/reconcile"
	"trapsort/internal/scanner"
)

func testMap(t *testing.T) *classmap.Map {
	t.Helper()
	m, err := classmap.New([]classmap.Entry{
		{ID: 1, Name: "cat"},
		{ID: 2, Name: "fox"},
		{ID: 9, Name: "unknown_animal"},
	})
	if err != nil {
		t.Fatalf("classmap.New: %v", err)
	}
	return m
}

func snapshot(files map[string]string) scanner.Snapshot {
	snap := scanner.Snapshot{Root: "/tree", Files: make(map[string]scanner.Entry)}
	for name, species := range files {
		snap.Files[name] = scanner.Entry{Species: species, Path: "/tree/" + species + "/" + name}
	}
	return snap
}

func snipOptions(t *testing.T) reconcile.Options {
	return reconcile.Options{Level: reconcile.LevelSnip, ClassMap: testMap(t), Ignore: classmap.NewSet("other_object")}
}

func imageOptions(t *testing.T, site string) reconcile.Options {
	return reconcile.Options{Level: reconcile.LevelImage, ClassMap: testMap(t), Ignore: classmap.NewSet("other_object"), Site: site}
}

func aiRow(site, filename, snip, class string, id int, prob float64) detection.Detection {
	return detection.Detection{
		CameraSite: site, Filename: filename, SnipName: snip,
		ClassID: id, ClassName: class, Prob: prob, Count: 1,
	}
}

func mustApply(t *testing.T, rows []detection.Detection, res reconcile.Result) []detection.Detection {
	t.Helper()
	out, err := reconcile.Apply(rows, res)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return out
}

func byFilename(rows []detection.Detection) map[string]detection.Detection {
	out := make(map[string]detection.Detection, len(rows))
	for _, r := range rows {
		out[r.CameraSite+"/"+r.Filename] = r
	}
	return out
}

func TestSnipMoveRecordsHumanCorrection(t *testing.T) {
	rows := []detection.Detection{
		aiRow("A", "I__00001-0.JPG", "r1.jpg", "fox", 2, 0.9),
		aiRow("B", "I__00001-0.JPG", "r2.jpg", "cat", 1, 0.8),
	}
	snap := snapshot(map[string]string{"r1.jpg": "cat", "r2.jpg": "cat"})

	res, err := reconcile.Reconcile(rows, snap, snipOptions(t))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := res.Counts(); got[reconcile.KindMoved] != 1 || len(res.Mutations) != 1 {
		t.Fatalf("unexpected mutations %+v", res.Mutations)
	}
	out := byFilename(mustApply(t, rows, res))
	moved := out["A/I__00001-0.JPG"]
	if moved.ClassName != "cat" || moved.ClassID != 1 || moved.Prob != detection.ProbNotScored || moved.ExpertUpdated != detection.ProvenanceSnipMove {
		t.Fatalf("unexpected moved row %+v", moved)
	}
	if kept := out["B/I__00001-0.JPG"]; kept != rows[1] {
		t.Fatalf("unchanged row altered: %+v", kept)
	}
}

func TestSnipLevelReportsOrphans(t *testing.T) {
	rows := []detection.Detection{aiRow("A", "I__00001-0.JPG", "r1.jpg", "fox", 2, 0.9)}
	snap := snapshot(map[string]string{"r1.jpg": "fox", "stray.jpg": "fox"})
	res, err := reconcile.Reconcile(rows, snap, snipOptions(t))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Empty() || len(res.Orphans) != 1 || res.Orphans[0] != "stray.jpg" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestImageMoveMovesEveryRowOfImage(t *testing.T) {
	newRow := detection.Detection{CameraSite: "A", Filename: "I__00009.JPG", ClassID: 2, ClassName: "fox",
		Prob: detection.ProbNotScored, Count: 1, ExpertUpdated: detection.ProvenanceNewRow}
	rows := []detection.Detection{
		aiRow("A", "I__00001-0.JPG", "r1.jpg", "fox", 2, 0.9),
		aiRow("A", "I__00001-1.JPG", "r2.jpg", "fox", 2, 0.7),
		newRow,
		aiRow("B", "I__00001-0.JPG", "r3.jpg", "fox", 2, 0.9),
	}
	snap := snapshot(map[string]string{"I__00001.JPG": "cat", "I__00009.JPG": "cat"})

	res, err := reconcile.Reconcile(rows, snap, imageOptions(t, "A"))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Counts()[reconcile.KindMoved] != 3 {
		t.Fatalf("expected 3 moves, got %+v", res.Counts())
	}
	out := byFilename(mustApply(t, rows, res))
	for _, name := range []string{"A/I__00001-0.JPG", "A/I__00001-1.JPG"} {
		if r := out[name]; r.ClassName != "cat" || r.ExpertUpdated != detection.ProvenanceImageMove {
			t.Fatalf("%s: %+v", name, r)
		}
	}
	if r := out["A/I__00009.JPG"]; r.ClassName != "cat" || r.ExpertUpdated != detection.ProvenanceNewRow {
		t.Fatalf("new row must keep its higher code: %+v", r)
	}
	if r := out["B/I__00001-0.JPG"]; r.ClassName != "fox" {
		t.Fatalf("other site touched: %+v", r)
	}
}

func TestImageLevelAddsRowsFromTree(t *testing.T) {
	rows := []detection.Detection{aiRow("A", "I__00001-0.JPG", "r1.jpg", "fox", 2, 0.9)}
	snap := snapshot(map[string]string{
		"I__00001.JPG": "fox",
		"I__00002.JPG": "cat",
		"I__00003.JPG": "other_object",
	})
	res, err := reconcile.Reconcile(rows, snap, imageOptions(t, "A"))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Mutations) != 1 || res.Mutations[0].Kind != reconcile.KindAdded {
		t.Fatalf("unexpected mutations %+v", res.Mutations)
	}
	if len(res.Orphans) != 1 || res.Orphans[0] != "I__00003.JPG" {
		t.Fatalf("expected ignored image reported, got %v", res.Orphans)
	}
	paths := reconcile.AddedPaths(res)
	if paths[detection.Key{CameraSite: "A", Filename: "I__00002.JPG"}] != "/tree/cat/I__00002.JPG" {
		t.Fatalf("unexpected added paths %v", paths)
	}

	out := mustApply(t, rows, res)
	added := out[len(out)-1]
	if added.Filename != "I__00002.JPG" || added.ClassID != 1 || added.Prob != detection.ProbNotScored ||
		added.Conf != 0 || added.Count != 1 || added.ExpertUpdated != detection.ProvenanceNewRow {
		t.Fatalf("unexpected added row %+v", added)
	}

	again, err := reconcile.Reconcile(out, snap, imageOptions(t, "A"))
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if !again.Empty() {
		t.Fatalf("expected no mutations on rerun, got %+v", again.Mutations)
	}
}

func TestMissingRowsAreFlaggedNotDropped(t *testing.T) {
	rows := []detection.Detection{
		aiRow("A", "I__00001-0.JPG", "r1.jpg", "fox", 2, 0.9),
		aiRow("A", "I__00002-0.JPG", "r2.jpg", "cat", 1, 0.9),
	}
	snap := snapshot(map[string]string{"I__00001.JPG": "fox"})
	res, err := reconcile.Reconcile(rows, snap, imageOptions(t, "A"))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	out := mustApply(t, rows, res)
	if len(out) != len(rows) {
		t.Fatalf("row lost: %d -> %d", len(rows), len(out))
	}
	if r := byFilename(out)["A/I__00002-0.JPG"]; r.Flag != detection.FlagMissing || r.ClassName != "cat" {
		t.Fatalf("expected flagged row, got %+v", r)
	}

	again, err := reconcile.Reconcile(out, snap, imageOptions(t, "A"))
	if err != nil || !again.Empty() {
		t.Fatalf("expected idempotent rerun, got %+v, %v", again.Mutations, err)
	}

	snap.Files["I__00002.JPG"] = scanner.Entry{Species: "cat", Path: "/tree/cat/I__00002.JPG"}
	back, err := reconcile.Reconcile(out, snap, imageOptions(t, "A"))
	if err != nil {
		t.Fatalf("Reconcile after restore: %v", err)
	}
	if back.Counts()[reconcile.KindRestored] != 1 {
		t.Fatalf("expected restore, got %+v", back.Mutations)
	}
	restored := byFilename(mustApply(t, out, back))["A/I__00002-0.JPG"]
	if restored.Flag != detection.FlagNone || restored.ExpertUpdated != detection.ProvenanceAI {
		t.Fatalf("unexpected restored row %+v", restored)
	}
}

func TestDropPolicyDeletesMissingRows(t *testing.T) {
	rows := []detection.Detection{
		aiRow("A", "I__00001-0.JPG", "r1.jpg", "fox", 2, 0.9),
		aiRow("A", "I__00002-0.JPG", "r2.jpg", "cat", 1, 0.9),
	}
	opts := imageOptions(t, "A")
	opts.Removal = reconcile.RemovalDrop
	res, err := reconcile.Reconcile(rows, snapshot(map[string]string{"I__00001.JPG": "fox"}), opts)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	out := mustApply(t, rows, res)
	if len(out) != 1 || out[0].Filename != "I__00001-0.JPG" {
		t.Fatalf("unexpected table %+v", out)
	}
}

func TestApplyRefusesDropWithoutPolicy(t *testing.T) {
	rows := []detection.Detection{aiRow("A", "x.jpg", "r.jpg", "fox", 2, 0.9)}
	res := reconcile.Result{
		Removal:   reconcile.RemovalFlag,
		Mutations: []reconcile.Mutation{{Kind: reconcile.KindDropped, Key: rows[0].Key(), Row: rows[0]}},
	}
	if _, err := reconcile.Apply(rows, res); !errors.Is(err, fault.ErrPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}
}

func TestUnknownSpeciesFolderIsIntegrityError(t *testing.T) {
	rows := []detection.Detection{aiRow("A", "I__00001-0.JPG", "r1.jpg", "fox", 2, 0.9)}
	_, err := reconcile.Reconcile(rows, snapshot(map[string]string{"I__00001.JPG": "wombat"}), imageOptions(t, "A"))
	diag, ok := fault.Details(err)
	if !ok || diag.Invariant != "known-species" || diag.Site != "A" || diag.File != "I__00001.JPG" {
		t.Fatalf("unexpected error %v", err)
	}
	if fault.ScopeOf(err) != fault.ScopeSite {
		t.Fatalf("expected site scope, got %v", fault.ScopeOf(err))
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	rows := []detection.Detection{
		aiRow("A", "I__00001-0.JPG", "r1.jpg", "fox", 2, 0.9),
		aiRow("A", "I__00002-0.JPG", "r2.jpg", "fox", 2, 0.4),
		aiRow("A", "I__00003-0.JPG", "r3.jpg", "cat", 1, 0.6),
	}
	snap := snapshot(map[string]string{"I__00001.JPG": "cat", "I__00003.JPG": "cat", "I__00004.JPG": "fox"})
	opts := imageOptions(t, "A")

	first, err := reconcile.Reconcile(rows, snap, opts)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	once := mustApply(t, rows, first)
	second, err := reconcile.Reconcile(once, snap, opts)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if !second.Empty() {
		t.Fatalf("expected no further mutations, got %+v", second.Mutations)
	}
	twice := mustApply(t, once, second)
	if len(twice) != len(once) {
		t.Fatalf("row count changed %d -> %d", len(once), len(twice))
	}
	prior := byFilename(rows)
	for key, r := range byFilename(twice) {
		if p, ok := prior[key]; ok && r.ExpertUpdated < p.ExpertUpdated {
			t.Fatalf("%s provenance lowered", key)
		}
	}
}

func TestImageLevelRequiresSite(t *testing.T) {
	opts := imageOptions(t, "")
	if _, err := reconcile.Reconcile(nil, snapshot(nil), opts); !errors.Is(err, fault.ErrPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}
}
