// Package memory holds an in-process AggregateStore for single-node
// deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

const DefaultMaxLabels = 1000

type bucketKey struct {
	linkID string
	day    time.Time
}

// bucket is guarded by its own mutex so unrelated buckets never contend.
type bucket struct {
	mu     sync.Mutex
	total  int64
	labels map[domain.Dimension]map[string]int64
}

type AggregateStore struct {
	mu        sync.RWMutex
	buckets   map[bucketKey]*bucket
	maxLabels int
}

func NewAggregateStore(maxLabels int) *AggregateStore {
	if maxLabels <= 0 {
		maxLabels = DefaultMaxLabels
	}
	return &AggregateStore{
		buckets:   make(map[bucketKey]*bucket),
		maxLabels: maxLabels,
	}
}

func (s *AggregateStore) bucketFor(key bucketKey) *bucket {
	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[key]; ok {
		return b
	}
	b = &bucket{labels: map[domain.Dimension]map[string]int64{
		domain.DimensionCountry:  {},
		domain.DimensionReferrer: {},
		domain.DimensionDevice:   {},
	}}
	s.buckets[key] = b
	return b
}

func (s *AggregateStore) Record(ctx context.Context, linkID string, click domain.ClassifiedClick) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	device := click.Device
	if !device.Valid() {
		device = domain.DeviceOther
	}

	b := s.bucketFor(bucketKey{linkID: linkID, day: domain.TruncateDay(click.Day)})
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	b.labels[domain.DimensionDevice][string(device)]++
	for _, dim := range []domain.Dimension{domain.DimensionCountry, domain.DimensionReferrer} {
		counts := b.labels[dim]
		label := click.Label(dim)
		if _, seen := counts[label]; !seen && s.distinct(counts) >= s.maxLabels {
			label = domain.OverflowLabel
		}
		counts[label]++
	}
	return nil
}

func (s *AggregateStore) distinct(counts map[string]int64) int {
	n := len(counts)
	if _, ok := counts[domain.OverflowLabel]; ok {
		n--
	}
	return n
}

// snapshot returns the link's buckets within [start, end], keyed by day.
func (s *AggregateStore) snapshot(linkID string, start, end time.Time) map[time.Time]*bucket {
	start, end = domain.TruncateDay(start), domain.TruncateDay(end)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[time.Time]*bucket)
	for k, b := range s.buckets {
		if k.linkID == linkID && !k.day.Before(start) && !k.day.After(end) {
			out[k.day] = b
		}
	}
	return out
}

func (s *AggregateStore) RangeTotals(ctx context.Context, linkID string, start, end time.Time) ([]domain.DayTotal, error) {
	totals := []domain.DayTotal{}
	for day, b := range s.snapshot(linkID, start, end) {
		b.mu.Lock()
		totals = append(totals, domain.DayTotal{Day: day, Total: b.total})
		b.mu.Unlock()
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Day.Before(totals[j].Day) })
	return totals, nil
}

func (s *AggregateStore) RangeBreakdown(ctx context.Context, linkID string, start, end time.Time, dim domain.Dimension, limit int) ([]domain.LabelCount, error) {
	sum := make(map[string]int64)
	for _, b := range s.snapshot(linkID, start, end) {
		b.mu.Lock()
		for label, n := range b.labels[dim] {
			sum[label] += n
		}
		b.mu.Unlock()
	}
	return domain.RankLabels(sum, limit), nil
}

func (s *AggregateStore) PurgeLink(ctx context.Context, linkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.buckets {
		if k.linkID == linkID {
			delete(s.buckets, k)
		}
	}
	return nil
}

func (s *AggregateStore) LinkIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for k := range s.buckets {
		seen[k.linkID] = struct{}{}
	}
	s.mu.RUnlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var _ ports.AggregateStore = (*AggregateStore)(nil)
