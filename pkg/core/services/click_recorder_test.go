package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/classifier"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/logger"
)

// blockingStore holds every Record until release is closed.
type blockingStore struct {
	*memory.AggregateStore
	release chan struct{}
}

func (s *blockingStore) Record(ctx context.Context, linkID string, c domain.ClassifiedClick) error {
	<-s.release
	return s.AggregateStore.Record(ctx, linkID, c)
}

type failingStore struct {
	*memory.AggregateStore
}

func (failingStore) Record(context.Context, string, domain.ClassifiedClick) error {
	return domain.StorageError("record", errors.New("disk full"))
}

func TestRecorderDrainsOnClose(t *testing.T) {
	f := newFixture(t)
	link := f.create(t, "alice")
	agg := memory.NewAggregateStore(0)
	rec := NewClickRecorder(f.repo, classifier.New(nil, 0, nil), agg, 64, 2, logger.Discard())

	for i := 0; i < 25; i++ {
		require.True(t, rec.Enqueue(domain.RawClick{LinkID: link.ID, At: time.Now(), CountryHint: "US"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rec.Close(ctx))

	rows, err := agg.RangeBreakdown(ctx, link.ID, time.Now(), time.Now(), domain.DimensionCountry, 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.LabelCount{{Label: "US", Count: 25}}, rows)

	stored, err := f.repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 25, stored.Clicks)

	assert.False(t, rec.Enqueue(domain.RawClick{LinkID: link.ID}), "closed recorder drops events")
	assert.ErrorIs(t, rec.Close(ctx), ErrRecorderClosed)
}

func TestRecorderDropsWhenFull(t *testing.T) {
	f := newFixture(t)
	link := f.create(t, "alice")
	store := &blockingStore{AggregateStore: memory.NewAggregateStore(0), release: make(chan struct{})}
	rec := NewClickRecorder(f.repo, classifier.New(nil, 0, nil), store, 1, 1, logger.Discard())

	raw := domain.RawClick{LinkID: link.ID, At: time.Now()}
	accepted := 0
	for i := 0; i < 10; i++ {
		if rec.Enqueue(raw) {
			accepted++
		}
	}
	// One event can sit in the worker and one in the queue.
	assert.LessOrEqual(t, accepted, 2)
	assert.GreaterOrEqual(t, accepted, 1)

	close(store.release)
	require.NoError(t, rec.Close(context.Background()))
}

func TestCounterAndAggregateAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := f.create(t, "alice")
	log := logger.Discard()

	failing := NewClickRecorder(f.repo, classifier.New(nil, 0, log), failingStore{memory.NewAggregateStore(0)}, 1, 1, log)
	defer failing.Close(ctx)
	err := failing.Process(ctx, domain.RawClick{LinkID: link.ID, At: time.Now()})
	assert.ErrorIs(t, err, domain.ErrStorage)

	stored, err := f.repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.Clicks, "aggregate failure keeps the counter increment")

	// A link that vanished still gets its aggregate recorded.
	require.NoError(t, f.recorder.Process(ctx, domain.RawClick{LinkID: "gone", At: time.Now()}))
	ids, _ := f.agg.LinkIDs(ctx)
	assert.Contains(t, ids, "gone")
}
