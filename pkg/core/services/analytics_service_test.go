package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
)

const (
	uaDesktop = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
	uaPhone   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148 Safari/604.1"
	uaBot     = "Googlebot/2.1 (+http://www.google.com/bot.html)"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTimeseriesAndBreakdownScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := f.create(t, "alice")
	clickDay := day(2026, 7, 14)

	f.click(t, link, clickDay.Add(1*time.Hour), "US", "https://t.co/x", uaDesktop)
	f.click(t, link, clickDay.Add(9*time.Hour), "US", "", uaPhone)
	f.click(t, link, clickDay.Add(23*time.Hour), "DE", "https://news.ycombinator.com", uaBot)

	q := domain.RangeQuery{From: &clickDay, To: &clickDay}
	ts, err := f.analytics.GetTimeseries(ctx, "alice", link.ID, q)
	require.NoError(t, err)
	assert.Equal(t, []domain.DayTotal{{Day: clickDay, Total: 3}}, ts.Series)
	assert.EqualValues(t, 3, ts.Total)

	bd, err := f.analytics.GetBreakdown(ctx, "alice", link.ID, domain.BreakdownQuery{RangeQuery: q, Dimension: "country"})
	require.NoError(t, err)
	assert.Equal(t, []domain.LabelCount{{Label: "US", Count: 2}, {Label: "DE", Count: 1}}, bd.Rows)

	stored, err := f.repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stored.Clicks)
}

func TestBreakdownSumsMatchTimeseries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := f.create(t, "alice")
	start := day(2026, 3, 1)

	countries := []string{"US", "DE", "", "JP"}
	referers := []string{"", "https://t.co", "not a url %%", "https://example.org/a"}
	agents := []string{uaDesktop, uaPhone, uaBot, ""}
	for i := 0; i < 40; i++ {
		at := start.AddDate(0, 0, i%5).Add(time.Duration(i) * time.Minute)
		f.click(t, link, at, countries[i%4], referers[(i/2)%4], agents[(i/3)%4])
	}

	end := start.AddDate(0, 0, 6)
	q := domain.RangeQuery{From: &start, To: &end}
	ts, err := f.analytics.GetTimeseries(ctx, "alice", link.ID, q)
	require.NoError(t, err)
	assert.Len(t, ts.Series, 7, "series is dense")
	assert.EqualValues(t, 40, ts.Total)
	assert.Zero(t, ts.Series[6].Total)

	for _, dim := range []string{"country", "referrer", "device"} {
		bd, err := f.analytics.GetBreakdown(ctx, "alice", link.ID, domain.BreakdownQuery{RangeQuery: q, Dimension: dim, Limit: 100})
		require.NoError(t, err)
		var sum int64
		for _, r := range bd.Rows {
			sum += r.Count
		}
		assert.Equal(t, ts.Total, sum, dim)
	}
}

func TestQueryOwnershipAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := f.create(t, "alice")
	anon := f.create(t, "")

	_, err := f.analytics.GetTimeseries(ctx, "bob", link.ID, domain.RangeQuery{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.analytics.GetTimeseries(ctx, "", anon.ID, domain.RangeQuery{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.analytics.GetBreakdown(ctx, "alice", "missing", domain.BreakdownQuery{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.analytics.GetBreakdown(ctx, "alice", link.ID, domain.BreakdownQuery{Dimension: "browser"})
	assert.ErrorIs(t, err, domain.ErrInvalidDimension)

	from, to := day(2026, 5, 2), day(2026, 5, 1)
	_, err = f.analytics.GetTimeseries(ctx, "alice", link.ID, domain.RangeQuery{From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	from = day(2024, 1, 1)
	to = day(2026, 1, 1)
	_, err = f.analytics.GetTimeseries(ctx, "alice", link.ID, domain.RangeQuery{From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestDefaultRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := f.create(t, "alice")
	f.analytics.now = func() time.Time { return time.Date(2026, 8, 31, 23, 30, 0, 0, time.FixedZone("PDT", -7*3600)) }

	ts, err := f.analytics.GetTimeseries(ctx, "alice", link.ID, domain.RangeQuery{})
	require.NoError(t, err)
	// 23:30 PDT is already 1 September in UTC.
	assert.Equal(t, day(2026, 9, 1), ts.Range.End)
	assert.Equal(t, day(2026, 8, 3), ts.Range.Start)
	assert.Len(t, ts.Series, 30)

	bd, err := f.analytics.GetBreakdown(ctx, "alice", link.ID, domain.BreakdownQuery{})
	require.NoError(t, err)
	assert.Equal(t, domain.DimensionCountry, bd.Dimension)
	assert.Empty(t, bd.Rows)
}

func TestBreakdownLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := f.create(t, "alice")
	now := time.Now()

	for _, c := range []string{"US", "US", "DE", "FR", "JP"} {
		f.click(t, link, now, c, "", uaDesktop)
	}

	bd, err := f.analytics.GetBreakdown(ctx, "alice", link.ID, domain.BreakdownQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []domain.LabelCount{{Label: "US", Count: 2}, {Label: "DE", Count: 1}}, bd.Rows)
}
