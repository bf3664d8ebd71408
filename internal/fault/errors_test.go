package fault_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"trapsort/internal/fault"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := fault.Wrap(fault.ErrSchema, "table", "load", "missing column", base)
	if !errors.Is(err, fault.ErrSchema) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	for _, fragment := range []string{"table", "load", "missing column"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error string %q", fragment, err.Error())
		}
	}
}

func TestDiagnosticMessageAndScope(t *testing.T) {
	err := fault.Integrity("rg_s2_c3", "unique-filename", "name appears in two species folders").
		WithFile("IMG_0001.JPG")
	wrapped := fmt.Errorf("reconcile: %w", err)

	if !errors.Is(wrapped, fault.ErrIntegrity) {
		t.Fatal("expected integrity marker")
	}
	if got := fault.ScopeOf(wrapped); got != fault.ScopeSite {
		t.Fatalf("expected site scope, got %s", got)
	}
	diag, ok := fault.Details(wrapped)
	if !ok {
		t.Fatal("expected diagnostic details")
	}
	if diag.Site != "rg_s2_c3" || diag.File != "IMG_0001.JPG" {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	for _, fragment := range []string{"site=rg_s2_c3", "file=IMG_0001.JPG", "invariant=unique-filename"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}

func TestScopeOfMarkers(t *testing.T) {
	cases := []struct {
		err  error
		want fault.Scope
	}{
		{fault.Wrap(fault.ErrMetadata, "exif", "", "", nil), fault.ScopeFile},
		{fault.Wrap(fault.ErrPolicy, "reconcile", "", "", nil), fault.ScopeSite},
		{fault.Wrap(fault.ErrSchema, "load", "", "", nil), fault.ScopeRun},
		{fault.Wrap(fault.ErrConfiguration, "config", "", "", nil), fault.ScopeRun},
		{errors.New("plain"), fault.ScopeRun},
	}
	for _, tc := range cases {
		if got := fault.ScopeOf(tc.err); got != tc.want {
			t.Fatalf("ScopeOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestTallyConcurrentRecord(t *testing.T) {
	tally := fault.NewTally(3)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tally.Record("exif", fmt.Sprintf("f%02d.jpg", i), errors.New("corrupt"))
		}(i)
	}
	wg.Wait()

	if tally.Total() != 50 {
		t.Fatalf("expected 50 failures, got %d", tally.Total())
	}
	if got := tally.Kinds()["exif"]; got != 50 {
		t.Fatalf("expected 50 exif failures, got %d", got)
	}
	if len(tally.Samples()) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(tally.Samples()))
	}
}
