// Package fileutil moves and copies image files between the service tree and
// the species breakout folders without ever clobbering an existing image.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

const partialSuffix = ".part"

// Digest returns the hex SHA-256 of the file at path and its size.
func Digest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// CopyImage copies src to dst through a staged ".part" file that is renamed
// into place only after its digest matches the source. The source
// modification time is carried over since capture time may fall back to it.
// An existing dst yields os.ErrExist.
func CopyImage(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("copy %s: destination %s: %w", filepath.Base(src), dst, os.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	staged := dst + partialSuffix
	want, err := stage(src, staged)
	if err != nil {
		_ = os.Remove(staged)
		return err
	}
	got, size, err := Digest(staged)
	if err != nil {
		_ = os.Remove(staged)
		return err
	}
	if size != info.Size() || got != want {
		_ = os.Remove(staged)
		return fmt.Errorf("copy %s: staged file differs from source (%d of %d bytes)", filepath.Base(src), size, info.Size())
	}
	if err := os.Chtimes(staged, info.ModTime(), info.ModTime()); err != nil {
		_ = os.Remove(staged)
		return err
	}
	return os.Rename(staged, dst)
}

// stage writes src to path and returns the digest of the bytes read.
func stage(src, path string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(out, io.TeeReader(in, h)); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MoveImage renames src to dst, creating the destination directory. Moves
// across filesystems fall back to CopyImage followed by removal of the
// source. An existing dst yields os.ErrExist.
func MoveImage(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("move %s: destination %s: %w", filepath.Base(src), dst, os.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	switch err := os.Rename(src, dst); {
	case err == nil:
		return nil
	case !errors.Is(err, syscall.EXDEV):
		return err
	}
	if err := CopyImage(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
