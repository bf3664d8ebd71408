// Package metadata extracts image capture time and flash state from EXIF.
//
// Extraction never fails: unreadable files and missing tags produce a Result
// with null fields and an informational error so batch callers can tally
// them. An optional fallback uses the file modification time.
package metadata
