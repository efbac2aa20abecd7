package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/viscalyx/viscalyx.se-sub001/internal/ratelimit"
	"github.com/viscalyx/viscalyx.se-sub001/slug"
)

// VisitWindow is how long repeat views of one post by one visitor
// count as a single view.
const VisitWindow = 30 * time.Minute

// Tracker forwards page views to a Sink. It never fails: invalid input
// is dropped and sink errors are logged.
type Tracker struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
	visits *ratelimit.Limiter
}

// NewTracker returns a Tracker writing to sink. A nil sink drops every
// view.
func NewTracker(sink Sink, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{sink: sink, logger: logger, now: time.Now, visits: ratelimit.New(1, VisitWindow)}
}

// Close stops the visit window's background pruning.
func (t *Tracker) Close() {
	if t != nil && t.visits != nil {
		t.visits.Stop()
	}
}

// VisitorKey identifies a visitor for de-duplication without keeping
// the address itself.
func VisitorKey(ip, userAgent string) string {
	return Hash(ip + "|" + userAgent)
}

// TrackVisit is TrackPageView for a known visitor: views of postSlug by
// visitor after the first are dropped until VisitWindow has passed. The
// post page and the collect endpoint both report through it, so one
// view seen by both counts once. An empty visitor is never de-duplicated.
func (t *Tracker) TrackVisit(ctx context.Context, visitor, postSlug, category string) {
	if t == nil || !slug.Valid(postSlug) || !slug.Valid(category) {
		return
	}
	if visitor != "" && t.visits != nil && !t.visits.Allow(visitor+"\x00"+postSlug) {
		return
	}
	t.TrackPageView(ctx, postSlug, category)
}

// TrackPageView records one view of the post postSlug in category.
// Both values must be valid slugs; anything else is silently ignored.
// Callers on a request path typically run it in its own goroutine.
func (t *Tracker) TrackPageView(ctx context.Context, postSlug, category string) {
	if t == nil || t.sink == nil {
		return
	}
	if !slug.Valid(postSlug) || !slug.Valid(category) {
		return
	}
	dp := DataPoint{
		Blobs:   []string{postSlug, category, t.now().UTC().Format(time.RFC3339)},
		Doubles: []float64{1},
		Indexes: []string{postSlug},
	}
	if err := t.sink.WriteDataPoint(ctx, dp); err != nil {
		t.logger.Warn("failed to record page view", "slug", postSlug, "error", err)
	}
}
