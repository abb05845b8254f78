package redisstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
)

// newTestStore connects to REDIS_ADDR; tests are skipped without it.
func newTestStore(t *testing.T, maxLabels int) (*AggregateStore, string) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())

	store := NewAggregateStore(client, maxLabels)
	linkID := uuid.NewString()
	t.Cleanup(func() {
		_ = store.PurgeLink(context.Background(), linkID)
		client.Close()
	})
	return store, linkID
}

var day = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestRecordIsAtomicUnderConcurrency(t *testing.T) {
	store, linkID := newTestStore(t, 0)
	ctx := context.Background()
	countries := []string{"US", "DE", "JP"}

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := domain.ClassifiedClick{Day: day, Country: countries[i%3], ReferrerHost: "direct", Device: domain.DeviceMobile}
			assert.NoError(t, store.Record(ctx, linkID, c))
		}(i)
	}
	wg.Wait()

	totals, err := store.RangeTotals(ctx, linkID, day, day)
	require.NoError(t, err)
	assert.Equal(t, []domain.DayTotal{{Day: day, Total: n}}, totals)

	rows, err := store.RangeBreakdown(ctx, linkID, day, day, domain.DimensionCountry, 0)
	require.NoError(t, err)
	var sum int64
	for _, r := range rows {
		sum += r.Count
	}
	assert.EqualValues(t, n, sum)

	rows, err = store.RangeBreakdown(ctx, linkID, day, day, domain.DimensionDevice, 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.LabelCount{{Label: "mobile", Count: n}}, rows)
}

func TestLabelCapAndPurge(t *testing.T) {
	store, linkID := newTestStore(t, 1)
	ctx := context.Background()
	next := day.AddDate(0, 0, 1)

	for _, c := range []domain.ClassifiedClick{
		{Day: day, Country: "US", ReferrerHost: "direct", Device: domain.DeviceDesktop},
		{Day: day, Country: "DE", ReferrerHost: "direct", Device: domain.DeviceDesktop},
		{Day: next, Country: "DE", ReferrerHost: "direct", Device: domain.DeviceDesktop},
	} {
		require.NoError(t, store.Record(ctx, linkID, c))
	}

	rows, err := store.RangeBreakdown(ctx, linkID, day, next, domain.DimensionCountry, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.LabelCount{{Label: "(other)", Count: 1}, {Label: "DE", Count: 1}, {Label: "US", Count: 1}}, rows)

	ids, err := store.LinkIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, linkID)

	require.NoError(t, store.PurgeLink(ctx, linkID))
	totals, err := store.RangeTotals(ctx, linkID, day, next)
	require.NoError(t, err)
	assert.Empty(t, totals)
}
