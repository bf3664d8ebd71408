package logging

import (
	"log/slog"
	"sync"
	"time"
)

// progressBuckets is the number of percentage buckets a Progress reports.
const progressBuckets = 10

// Progress logs batch progress at debug level, once per tenth of the batch.
// It is safe for concurrent use by worker goroutines.
type Progress struct {
	logger  *slog.Logger
	message string
	total   int
	started time.Time

	mu         sync.Mutex
	done       int
	lastBucket int // zero until the first tenth completes
}

// NewProgress tracks a batch of total items. A nil logger disables output
// but still counts.
func NewProgress(logger *slog.Logger, message string, total int) *Progress {
	return &Progress{
		logger:     logger,
		message:    message,
		total:      total,
		started:    time.Now(),
	}
}

// Advance records n finished items and reports whether a line was logged.
func (p *Progress) Advance(n int) bool {
	if p == nil || p.total <= 0 {
		return false
	}
	p.mu.Lock()
	p.done += n
	done := p.done
	bucket := min(done, p.total) * progressBuckets / p.total
	emit := bucket > p.lastBucket
	if emit {
		p.lastBucket = bucket
	}
	p.mu.Unlock()

	if emit && p.logger != nil {
		p.logger.Debug(p.message,
			Int("done", done),
			Int("total", p.total),
			Duration("elapsed", time.Since(p.started)),
		)
	}
	return emit
}

// Done returns the number of items recorded so far.
func (p *Progress) Done() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
