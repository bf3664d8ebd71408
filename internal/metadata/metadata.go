package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/sync/errgroup"

	"trapsort/internal/detection"
	"trapsort/internal/fault"
	"trapsort/internal/logging"
)

// ExifLayout is the EXIF date/time format.
const ExifLayout = "2006:01:02 15:04:05"

// Source names where a capture time came from.
type Source string

const (
	SourceNone  Source = "none"
	SourceExif  Source = "exif"
	SourceMTime Source = "mtime"
)

var (
	errNoCaptureTime = errors.New("no capture time in exif")
	errNoFlash       = errors.New("no flash tag in exif")
)

// Result is the capture metadata of one image. Timestamps carry wall-clock
// time in UTC since camera clocks record no zone.
type Result struct {
	Timestamp *time.Time
	Flash     detection.FlashState
	Source    Source
	// Err records why a field could not be read. It is informational; the
	// zero-valued fields are still usable.
	Err error
}

// Extractor reads EXIF capture time and flash state. It never fails; missing
// or corrupt metadata yields a Result with null fields and Err set.
type Extractor struct {
	mtimeFallback bool
	memo          *cache.Cache
	logger        *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMTimeFallback uses the file modification time when no EXIF capture time
// is present.
func WithMTimeFallback(enabled bool) Option {
	return func(e *Extractor) { e.mtimeFallback = enabled }
}

// WithLogger sets the logger used for per-file diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// NewExtractor constructs an extractor with a per-run memo.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		memo:   cache.New(cache.NoExpiration, 0),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "metadata")
	return e
}

// Extract reads path. Results are memoized by path, size, and modification
// time for the life of the extractor.
func (e *Extractor) Extract(path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Source: SourceNone, Err: fault.Wrap(fault.ErrMetadata, "metadata", "stat", path, err)}
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if cached, ok := e.memo.Get(key); ok {
		return cached.(Result)
	}
	result := e.read(path, info)
	e.memo.Set(key, result, cache.NoExpiration)
	return result
}

func (e *Extractor) read(path string, info os.FileInfo) Result {
	result := Result{Source: SourceNone}
	x, err := decode(path)
	if err != nil {
		result.Err = fault.Wrap(fault.ErrMetadata, "metadata", "decode exif", path, err)
	} else {
		if ts, err := captureTime(x); err == nil {
			result.Timestamp = &ts
			result.Source = SourceExif
		} else {
			result.Err = fault.Wrap(fault.ErrMetadata, "metadata", "capture time", path, err)
		}
		if flash, err := flashState(x); err == nil {
			result.Flash = flash
		} else if result.Err == nil {
			result.Err = fault.Wrap(fault.ErrMetadata, "metadata", "flash", path, err)
		}
	}
	if result.Timestamp == nil && e.mtimeFallback {
		mt := info.ModTime()
		ts := time.Date(mt.Year(), mt.Month(), mt.Day(), mt.Hour(), mt.Minute(), mt.Second(), 0, time.UTC)
		result.Timestamp = &ts
		result.Source = SourceMTime
	}
	return result
}

func decode(path string) (*exif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return exif.Decode(f)
}

func captureTime(x *exif.Exif) (time.Time, error) {
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		raw = strings.TrimRight(strings.TrimSpace(raw), "\x00")
		if ts, err := time.ParseInLocation(ExifLayout, raw, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errNoCaptureTime
}

// flashState reads EXIF tag 0x9209. Bit 0 records whether the flash fired.
func flashState(x *exif.Exif) (detection.FlashState, error) {
	tag, err := x.Get(exif.Flash)
	if err != nil {
		return detection.FlashUnknown, errNoFlash
	}
	value, err := tag.Int(0)
	if err != nil {
		return detection.FlashUnknown, err
	}
	return detection.FlashFromBool(value&1 == 1), nil
}

// ExtractAll reads every path on a bounded worker pool. Failures are tallied
// under "metadata" and never abort the batch. The returned map is keyed by
// path.
func (e *Extractor) ExtractAll(ctx context.Context, paths []string, workers int, tally *fault.Tally) (map[string]Result, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(paths))
	progress := logging.NewProgress(e.logger, "metadata progress", len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.Extract(path)
			if results[i].Err != nil {
				tally.Record("metadata", path, results[i].Err)
			}
			progress.Advance(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]Result, len(paths))
	for i, path := range paths {
		out[path] = results[i]
	}
	return out, nil
}
