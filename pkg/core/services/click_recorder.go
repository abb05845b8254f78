package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

const (
	DefaultClickQueueSize = 1024
	DefaultClickWorkers   = 4
)

var ErrRecorderClosed = errors.New("click recorder closed")

// ClickRecorder moves redirect events off the request path. Each event
// bumps the link's raw counter, is classified, and lands in the aggregate
// store. The counter and the aggregate are independent: a failure in one
// does not undo the other.
type ClickRecorder struct {
	links      ports.LinkRepository
	classifier ports.Classifier
	agg        ports.AggregateStore
	logger     *slog.Logger

	queue  chan domain.RawClick
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewClickRecorder(links ports.LinkRepository, classifier ports.Classifier, agg ports.AggregateStore, queueSize, workers int, logger *slog.Logger) *ClickRecorder {
	if queueSize <= 0 {
		queueSize = DefaultClickQueueSize
	}
	if workers <= 0 {
		workers = DefaultClickWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &ClickRecorder{
		links:      links,
		classifier: classifier,
		agg:        agg,
		logger:     logger,
		queue:      make(chan domain.RawClick, queueSize),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Enqueue never blocks. It reports false when the event was dropped because
// the queue is full or the recorder is closed.
func (r *ClickRecorder) Enqueue(raw domain.RawClick) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		metrics.ClickEvents.WithLabelValues("dropped").Inc()
		return false
	}

	select {
	case r.queue <- raw:
		metrics.ClickQueueDepth.Set(float64(len(r.queue)))
		return true
	default:
		metrics.ClickEvents.WithLabelValues("dropped").Inc()
		r.logger.Warn("click queue full, dropping event", "link_id", raw.LinkID, "slug", raw.Slug)
		return false
	}
}

func (r *ClickRecorder) worker() {
	defer r.wg.Done()
	for raw := range r.queue {
		metrics.ClickQueueDepth.Set(float64(len(r.queue)))
		_ = r.Process(context.Background(), raw)
	}
}

// Process records one click synchronously. The returned error is the
// aggregate store's; counter failures are only logged.
func (r *ClickRecorder) Process(ctx context.Context, raw domain.RawClick) error {
	if err := r.links.IncrementClicks(ctx, raw.LinkID); err != nil {
		metrics.ClickEvents.WithLabelValues("counter_failed").Inc()
		r.logger.Error("increment clicks failed", "link_id", raw.LinkID, "error", err)
	}

	classified := r.classifier.Classify(ctx, raw)
	if err := r.agg.Record(ctx, raw.LinkID, classified); err != nil {
		metrics.ClickEvents.WithLabelValues("aggregate_failed").Inc()
		r.logger.Error("record click aggregate failed", "link_id", raw.LinkID, "day", classified.Day.Format(domain.DayLayout), "error", err)
		return err
	}

	metrics.ClickEvents.WithLabelValues("recorded").Inc()
	return nil
}

// Close stops accepting events and waits for queued ones to drain, or for
// ctx to expire.
func (r *ClickRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRecorderClosed
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ ports.ClickSink = (*ClickRecorder)(nil)
