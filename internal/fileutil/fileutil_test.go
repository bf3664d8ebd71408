package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyImagePreservesModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "fox", "90", "dst.jpg")

	content := []byte("snip bytes")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	stamp := time.Date(2023, 11, 4, 6, 30, 0, 0, time.UTC)
	if err := os.Chtimes(src, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	if err := CopyImage(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(stamp) {
		t.Fatalf("mod time = %v, want %v", info.ModTime(), stamp)
	}
}

func TestCopyImageRefusesOverwriteAndLeavesNoPartial(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "aaaaaaaa.jpg")
	dst := filepath.Join(dir, "fox", "aaaaaaaa.jpg")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("expert copy"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyImage(src, dst); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "expert copy" {
		t.Fatalf("destination overwritten: %q", got)
	}
	if _, err := os.Stat(dst + partialSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no staged file, stat err = %v", err)
	}
}

func TestCopyImageMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyImage(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.jpg")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestDigestMatchesCopies(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "cat", "dst.jpg")
	if err := os.WriteFile(src, []byte("snip bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyImage(src, dst); err != nil {
		t.Fatal(err)
	}
	a, n, err := Digest(src)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := Digest(dst)
	if err != nil {
		t.Fatal(err)
	}
	if a != b || n != int64(len("snip bytes")) {
		t.Fatalf("digest mismatch %s/%s size %d", a, b, n)
	}
}

func TestMoveImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "animal", "I__00001-0.JPG")
	dst := filepath.Join(dir, "animal", "fox", "I__00001-0.JPG")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveImage(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source removed, stat err = %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected destination, got %v", err)
	}
}

func TestMoveImageRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	dst := filepath.Join(dir, "b.jpg")
	for _, p := range []string{src, dst} {
		if err := os.WriteFile(p, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	err := MoveImage(src, dst)
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
}
