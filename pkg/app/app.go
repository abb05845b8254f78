// Package app wires repositories, services and the HTTP router from config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/adapters/geo"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/adapters/handler"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/adapters/repository/redisstore"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/config"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/classifier"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/services"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

type App struct {
	Repo       *sqlite.SQLiteRepository
	Aggregates ports.AggregateStore
	Recorder   *services.ClickRecorder
	Handler    http.Handler

	redis  *redis.Client
	logger *slog.Logger
}

// New opens storage and builds every service. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &App{Repo: repo, logger: logger}
	if err := a.openAggregates(ctx, cfg); err != nil {
		repo.Close()
		return nil, err
	}

	locator, err := newGeoLocator(cfg, logger)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	links := services.NewLinkService(repo, a.Aggregates, logger)
	folders := services.NewFolderService(repo, logger)
	a.Recorder = services.NewClickRecorder(repo, classifier.New(locator, cfg.GeoTimeout, logger),
		a.Aggregates, cfg.ClickQueueSize, cfg.ClickWorkers, logger)

	a.Handler = handler.NewRouter(cfg, handler.Services{
		Links:     links,
		Analytics: services.NewAnalyticsService(repo, a.Aggregates),
		Bulk:      services.NewBulkService(links, cfg.BulkConcurrency, cfg.BulkMaxIDs, logger),
		Folders:   folders,
		Clicks:    a.Recorder,
	}, logger)

	return a, nil
}

func (a *App) openAggregates(ctx context.Context, cfg *config.Config) error {
	switch cfg.AggregateBackend {
	case "", "sqlite":
		a.Aggregates = a.Repo.NewAggregateStore(cfg.MaxLabelsPerBucket)
	case "memory":
		a.Aggregates = memory.NewAggregateStore(cfg.MaxLabelsPerBucket)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		a.redis = client
		a.Aggregates = redisstore.NewAggregateStore(client, cfg.MaxLabelsPerBucket)
	default:
		return fmt.Errorf("unknown AGGREGATE_BACKEND %q", cfg.AggregateBackend)
	}
	a.logger.Info("aggregate store ready", "backend", cfg.AggregateBackend)
	return nil
}

func newGeoLocator(cfg *config.Config, logger *slog.Logger) (ports.GeoLocator, error) {
	if cfg.GeoCIDRFile == "" {
		return geo.Noop{}, nil
	}
	table, err := geo.LoadFile(cfg.GeoCIDRFile)
	if err != nil {
		return nil, fmt.Errorf("load geo table: %w", err)
	}
	logger.Info("geo table loaded", "path", cfg.GeoCIDRFile, "ranges", table.Len())
	return table, nil
}

// Close drains pending clicks, then closes storage.
func (a *App) Close(ctx context.Context) error {
	err := a.Recorder.Close(ctx)
	a.closeStores()
	return err
}

func (a *App) closeStores() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if err := a.Repo.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}
