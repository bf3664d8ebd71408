package testsupport

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ImageMeta describes the EXIF fields written by WriteImage. Nil fields are
// omitted.
type ImageMeta struct {
	Taken *time.Time
	Flash *uint16
}

// FlashValue returns a pointer for ImageMeta.Flash.
func FlashValue(v uint16) *uint16 {
	return &v
}

// At returns a pointer to a UTC wall-clock time.
func At(year int, month time.Month, day, hour, minute, second int) *time.Time {
	ts := time.Date(year, month, day, hour, minute, second, 0, time.UTC)
	return &ts
}

// WriteImage writes a minimal JPEG carrying an EXIF block with the requested
// fields. With no fields set the file has no EXIF segment at all.
func WriteImage(t testing.TB, path string, meta ImageMeta) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	if meta.Taken != nil || meta.Flash != nil {
		payload := append([]byte("Exif\x00\x00"), buildTIFF(meta)...)
		buf.Write([]byte{0xFF, 0xE1})
		_ = binary.Write(&buf, binary.BigEndian, uint16(len(payload)+2))
		buf.Write(payload)
	}
	buf.Write([]byte{0xFF, 0xD9})
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

type ifdEntry struct {
	tag   uint16
	kind  uint16
	count uint32
	value uint32
}

// buildTIFF lays out a little-endian TIFF with IFD0 pointing at an Exif
// sub-IFD holding DateTimeOriginal and Flash.
func buildTIFF(meta ImageMeta) []byte {
	le := binary.LittleEndian
	const ifd0Offset = 8
	const ifd0Size = 2 + 12 + 4
	const exifOffset = ifd0Offset + ifd0Size

	var entries []ifdEntry
	var data []byte
	n := 0
	if meta.Taken != nil {
		n++
	}
	if meta.Flash != nil {
		n++
	}
	dataOffset := uint32(exifOffset + 2 + 12*n + 4)
	if meta.Taken != nil {
		data = append(data, []byte(meta.Taken.Format("2006:01:02 15:04:05"))...)
		data = append(data, 0)
		entries = append(entries, ifdEntry{tag: 0x9003, kind: 2, count: 20, value: dataOffset})
	}
	if meta.Flash != nil {
		entries = append(entries, ifdEntry{tag: 0x9209, kind: 3, count: 1, value: uint32(*meta.Flash)})
	}

	var out bytes.Buffer
	out.WriteString("II")
	_ = binary.Write(&out, le, uint16(42))
	_ = binary.Write(&out, le, uint32(ifd0Offset))

	_ = binary.Write(&out, le, uint16(1))
	writeEntry(&out, ifdEntry{tag: 0x8769, kind: 4, count: 1, value: exifOffset})
	_ = binary.Write(&out, le, uint32(0))

	_ = binary.Write(&out, le, uint16(len(entries)))
	for _, e := range entries {
		writeEntry(&out, e)
	}
	_ = binary.Write(&out, le, uint32(0))
	out.Write(data)
	return out.Bytes()
}

func writeEntry(out *bytes.Buffer, e ifdEntry) {
	le := binary.LittleEndian
	_ = binary.Write(out, le, e.tag)
	_ = binary.Write(out, le, e.kind)
	_ = binary.Write(out, le, e.count)
	if e.kind == 3 {
		// SHORT values are left-justified in the 4-byte field.
		_ = binary.Write(out, le, uint16(e.value))
		_ = binary.Write(out, le, uint16(0))
		return
	}
	_ = binary.Write(out, le, e.value)
}
