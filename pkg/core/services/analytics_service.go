package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

const (
	defaultRangeDays      = 30
	maxRangeDays          = 366
	defaultBreakdownLimit = 10
	maxBreakdownLimit     = 100
)

// AnalyticsService answers timeseries and breakdown queries. It reads only
// the aggregate store; the link repository is consulted for ownership.
type AnalyticsService struct {
	links ports.LinkRepository
	agg   ports.AggregateStore
	now   func() time.Time
}

func NewAnalyticsService(links ports.LinkRepository, agg ports.AggregateStore) *AnalyticsService {
	return &AnalyticsService{links: links, agg: agg, now: time.Now}
}

func (s *AnalyticsService) GetTimeseries(ctx context.Context, requesterID, linkID string, q domain.RangeQuery) (*domain.Timeseries, error) {
	r, err := s.resolveRange(q)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, requesterID, linkID); err != nil {
		return nil, err
	}

	totals, err := s.agg.RangeTotals(ctx, linkID, r.Start, r.End)
	if err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]int64, len(totals))
	for _, t := range totals {
		byDay[domain.TruncateDay(t.Day)] += t.Total
	}

	ts := &domain.Timeseries{
		LinkID: linkID,
		Range:  r,
		Series: make([]domain.DayTotal, 0, r.Days()),
	}
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		n := byDay[d]
		ts.Series = append(ts.Series, domain.DayTotal{Day: d, Total: n})
		ts.Total += n
	}
	return ts, nil
}

func (s *AnalyticsService) GetBreakdown(ctx context.Context, requesterID, linkID string, q domain.BreakdownQuery) (*domain.Breakdown, error) {
	dim, err := domain.ParseDimension(q.Dimension)
	if err != nil {
		return nil, err
	}
	r, err := s.resolveRange(q.RangeQuery)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, requesterID, linkID); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultBreakdownLimit
	}
	if limit > maxBreakdownLimit {
		limit = maxBreakdownLimit
	}

	rows, err := s.agg.RangeBreakdown(ctx, linkID, r.Start, r.End, dim, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.LabelCount{}
	}
	return &domain.Breakdown{LinkID: linkID, Dimension: dim, Range: r, Rows: rows}, nil
}

// authorize re-reads the link on every query. Links the requester does not
// own are reported as missing.
func (s *AnalyticsService) authorize(ctx context.Context, requesterID, linkID string) error {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return err
	}
	if err := link.CheckOwner(requesterID); err != nil {
		if errors.Is(err, domain.ErrNotOwned) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

// resolveRange applies the default window: end is today (UTC) and start is
// 29 days earlier, both as UTC day boundaries.
func (s *AnalyticsService) resolveRange(q domain.RangeQuery) (domain.DateRange, error) {
	end := domain.TruncateDay(s.now())
	if q.To != nil {
		end = domain.TruncateDay(*q.To)
	}
	start := end.AddDate(0, 0, -(defaultRangeDays - 1))
	if q.From != nil {
		start = domain.TruncateDay(*q.From)
	}

	r := domain.DateRange{Start: start, End: end}
	if start.After(end) {
		return r, fmt.Errorf("%w: from %s is after to %s", domain.ErrInvalidRange,
			start.Format(domain.DayLayout), end.Format(domain.DayLayout))
	}
	if r.Days() > maxRangeDays {
		return r, fmt.Errorf("%w: range spans %d days, max %d", domain.ErrInvalidRange, r.Days(), maxRangeDays)
	}
	return r, nil
}

var _ ports.AnalyticsService = (*AnalyticsService)(nil)
