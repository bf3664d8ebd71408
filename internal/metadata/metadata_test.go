package metadata_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trapsort/internal/detection"
	"trapsort/internal/fault"
	"trapsort/internal/metadata"
	"trapsort/internal/testsupport"
)

func TestExtractReadsCaptureTimeAndFlash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "I__00001.JPG")
	taken := testsupport.At(2024, time.March, 1, 10, 0, 0)
	testsupport.WriteImage(t, path, testsupport.ImageMeta{Taken: taken, Flash: testsupport.FlashValue(0x19)})

	res := metadata.NewExtractor().Extract(path)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Timestamp == nil || !res.Timestamp.Equal(*taken) {
		t.Fatalf("timestamp = %v, want %v", res.Timestamp, taken)
	}
	if res.Flash != detection.FlashOn {
		t.Fatalf("flash = %v, want on", res.Flash)
	}
	if res.Source != metadata.SourceExif {
		t.Fatalf("source = %q", res.Source)
	}
}

func TestExtractFlashSuppressedIsOff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "night.JPG")
	testsupport.WriteImage(t, path, testsupport.ImageMeta{
		Taken: testsupport.At(2024, time.March, 1, 23, 0, 0),
		Flash: testsupport.FlashValue(0x10),
	})

	res := metadata.NewExtractor().Extract(path)
	if res.Flash != detection.FlashOff {
		t.Fatalf("flash = %v, want off", res.Flash)
	}
}

func TestExtractMissingExifNeverFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.JPG")
	testsupport.WriteImage(t, path, testsupport.ImageMeta{})

	res := metadata.NewExtractor().Extract(path)
	if res.Timestamp != nil {
		t.Fatalf("expected null timestamp, got %v", res.Timestamp)
	}
	if res.Flash.Known() {
		t.Fatalf("expected unknown flash, got %v", res.Flash)
	}
	if !errors.Is(res.Err, fault.ErrMetadata) {
		t.Fatalf("expected metadata error, got %v", res.Err)
	}
}

func TestExtractFallsBackToModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.JPG")
	testsupport.WriteImage(t, path, testsupport.ImageMeta{})
	stamp := time.Date(2023, 6, 5, 4, 3, 2, 0, time.Local)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	res := metadata.NewExtractor(metadata.WithMTimeFallback(true)).Extract(path)
	if res.Source != metadata.SourceMTime {
		t.Fatalf("expected mtime source, got %q", res.Source)
	}
	want := time.Date(2023, 6, 5, 4, 3, 2, 0, time.UTC)
	if res.Timestamp == nil || !res.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", res.Timestamp, want)
	}
}

func TestExtractAllTalliesFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.JPG")
	bare := filepath.Join(dir, "bare.JPG")
	gone := filepath.Join(dir, "gone.JPG")
	testsupport.WriteImage(t, good, testsupport.ImageMeta{Taken: testsupport.At(2024, time.March, 1, 10, 0, 0)})
	testsupport.WriteImage(t, bare, testsupport.ImageMeta{})

	tally := fault.NewTally(0)
	results, err := metadata.NewExtractor().ExtractAll(context.Background(), []string{good, bare, gone}, 2, tally)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[good].Timestamp == nil {
		t.Fatal("expected timestamp for good image")
	}
	if tally.Total() != 2 {
		t.Fatalf("expected 2 tallied failures, got %d", tally.Total())
	}
}

func TestExtractAllHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := metadata.NewExtractor().ExtractAll(ctx, []string{"a", "b"}, 1, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
