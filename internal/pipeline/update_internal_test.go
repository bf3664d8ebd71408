package pipeline

import (
	"testing"

	"trapsort/internal/detection"
	"trapsort/internal/fault"
)

func TestCheckMonotoneRejectsLoweredProvenance(t *testing.T) {
	before := []detection.Detection{
		{CameraSite: "rg_s1_c1", Filename: "I__00001-0.JPG", ExpertUpdated: detection.ProvenanceImageMove},
		{CameraSite: "rg_s1_c1", Filename: "I__00002-0.JPG", ExpertUpdated: detection.ProvenanceAI},
	}
	raised := detection.CloneAll(before)
	raised[1].ExpertUpdated = detection.ProvenanceInferred
	raised = append(raised, detection.Detection{CameraSite: "rg_s1_c1", Filename: "I__00009.JPG", ExpertUpdated: detection.ProvenanceNewRow})
	if err := checkMonotone(before, raised); err != nil {
		t.Fatalf("raised or new rows should pass: %v", err)
	}

	lowered := detection.CloneAll(before)
	lowered[0].ExpertUpdated = detection.ProvenanceInferred
	err := checkMonotone(before, lowered)
	diag, ok := fault.Details(err)
	if !ok {
		t.Fatalf("expected diagnostic, got %v", err)
	}
	if diag.Invariant != "provenance-monotone" || diag.File != "I__00001-0.JPG" || diag.Site != "rg_s1_c1" {
		t.Fatalf("unexpected diagnostic %+v", diag)
	}
}
