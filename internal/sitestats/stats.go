package sitestats

import (
	"context"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trapsort/internal/fault"
	"trapsort/internal/metadata"
	"trapsort/internal/scanner"
	"trapsort/internal/tablestore"
)

// Bucket names counted per site. Any image below an animal folder counts as
// animal; the others are matched on the image's immediate folder.
const (
	BucketAnimal  = "animal"
	BucketBlank   = "blank"
	BucketPerson  = "person"
	BucketVehicle = "vehicle"
)

// Stats is the operating summary of one camera site.
type Stats struct {
	FirstImage     *time.Time
	LastImage      *time.Time
	Animal         int
	DaysWithAnimal int
	Blank          int
	Person         int
	Vehicle        int
	DaysWithEvent  int
}

// Total returns the number of images counted in any bucket.
func (s Stats) Total() int {
	return s.Animal + s.Blank + s.Person + s.Vehicle
}

// OpDays returns the whole days between the first and last capture, or false
// when either is unknown.
func (s Stats) OpDays() (int, bool) {
	if s.FirstImage == nil || s.LastImage == nil {
		return 0, false
	}
	return int(s.LastImage.Sub(*s.FirstImage).Hours() / 24), true
}

// Values renders s in StatColumns order.
func (s Stats) Values() []string {
	opDays := tablestore.NA
	if days, ok := s.OpDays(); ok {
		opDays = strconv.Itoa(days)
	}
	return []string{
		tablestore.FormatTimestamp(s.FirstImage),
		tablestore.FormatTimestamp(s.LastImage),
		opDays,
		strconv.Itoa(s.Animal),
		strconv.Itoa(s.DaysWithAnimal),
		strconv.Itoa(s.Blank),
		strconv.Itoa(s.Person),
		strconv.Itoa(s.Vehicle),
		strconv.Itoa(s.Total()),
		strconv.Itoa(s.DaysWithEvent),
	}
}

// Bucket classifies an image by its path relative to the site folder. The
// second result is false for images outside every bucket.
func Bucket(rel string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/")
	for _, part := range parts {
		if strings.EqualFold(part, BucketAnimal) {
			return BucketAnimal, true
		}
	}
	parent := strings.ToLower(parts[len(parts)-1])
	switch parent {
	case BucketBlank, BucketPerson, BucketVehicle:
		return parent, true
	}
	return "", false
}

type bucketed struct {
	path   string
	bucket string
}

// Compute walks siteDir, buckets every image and reads capture times through
// ex. Images whose capture time cannot be read are counted but contribute no
// dates; the failures are tallied.
func Compute(ctx context.Context, siteDir string, ex *metadata.Extractor, workers int, tally *fault.Tally) (Stats, error) {
	var images []bucketed
	err := filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !scanner.IsImage(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(siteDir, path)
		if err != nil {
			return err
		}
		if bucket, ok := Bucket(rel); ok {
			images = append(images, bucketed{path: path, bucket: bucket})
		}
		return nil
	})
	if err != nil {
		return Stats{}, fault.Wrap(fault.ErrIntegrity, "sites", "walk site", siteDir, err)
	}

	paths := make([]string, len(images))
	for i, img := range images {
		paths[i] = img.path
	}
	results, err := ex.ExtractAll(ctx, paths, workers, tally)
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	animalDays := make(map[string]struct{})
	eventDays := make(map[string]struct{})
	for _, img := range images {
		switch img.bucket {
		case BucketAnimal:
			s.Animal++
		case BucketBlank:
			s.Blank++
		case BucketPerson:
			s.Person++
		case BucketVehicle:
			s.Vehicle++
		}
		ts := results[img.path].Timestamp
		if ts == nil {
			continue
		}
		if s.FirstImage == nil || ts.Before(*s.FirstImage) {
			s.FirstImage = ts
		}
		if s.LastImage == nil || ts.After(*s.LastImage) {
			s.LastImage = ts
		}
		day := ts.Format(time.DateOnly)
		eventDays[day] = struct{}{}
		if img.bucket == BucketAnimal {
			animalDays[day] = struct{}{}
		}
	}
	s.DaysWithAnimal = len(animalDays)
	s.DaysWithEvent = len(eventDays)
	return s, nil
}
