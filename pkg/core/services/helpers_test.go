package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/classifier"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/logger"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

type fixture struct {
	repo      *sqlite.SQLiteRepository
	agg       *memory.AggregateStore
	links     *LinkService
	analytics *AnalyticsService
	bulk      *BulkService
	folders   *FolderService
	recorder  *ClickRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := sqlite.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	log := logger.Discard()
	agg := memory.NewAggregateStore(0)
	links := NewLinkService(repo, agg, log)
	recorder := NewClickRecorder(repo, classifier.New(nil, 0, log), agg, 16, 1, log)
	t.Cleanup(func() { _ = recorder.Close(context.Background()) })

	return &fixture{
		repo:      repo,
		agg:       agg,
		links:     links,
		analytics: NewAnalyticsService(repo, agg),
		bulk:      NewBulkService(links, 4, 10, log),
		folders:   NewFolderService(repo, log),
		recorder:  recorder,
	}
}

func (f *fixture) create(t *testing.T, owner string) *domain.Link {
	t.Helper()
	link, err := f.links.Create(context.Background(), ports.CreateLinkInput{LongURL: "https://example.com", OwnerID: owner})
	require.NoError(t, err)
	return link
}

// click runs one redirect event through the pipeline synchronously.
func (f *fixture) click(t *testing.T, link *domain.Link, at time.Time, country, referer, ua string) {
	t.Helper()
	require.NoError(t, f.recorder.Process(context.Background(), domain.RawClick{
		LinkID: link.ID, Slug: link.Slug, At: at, CountryHint: country, Referer: referer, UserAgent: ua,
	}))
}
