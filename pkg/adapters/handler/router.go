package handler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/config"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

// Services groups what the router dispatches to.
type Services struct {
	Links     ports.LinkService
	Analytics ports.AnalyticsService
	Bulk      ports.BulkService
	Folders   ports.FolderService
	Clicks    ports.ClickSink
}

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, svc Services, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := NewHTTPHandler(svc.Links, svc.Folders, svc.Clicks, cfg.BaseURL, logger)
	ah := NewAnalyticsHandler(svc.Analytics, logger)
	bh := NewBulkHandler(svc.Bulk, svc.Folders, logger)
	fh := NewFolderHandler(svc.Folders, logger)
	authHandler := NewAuthHandler(cfg, logger)
	mw := NewMiddleware(cfg, logger)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{slug}", h.Redirect)
	mux.HandleFunc("POST /shorten", h.Shorten)
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)

	// Protected Routes
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /api/v1/links", h.Create)
	protectedMux.HandleFunc("GET /api/v1/links", h.List)
	protectedMux.HandleFunc("POST /api/v1/links/bulk", bh.Apply)
	protectedMux.HandleFunc("GET /api/v1/links/{id}", h.Get)
	protectedMux.HandleFunc("PATCH /api/v1/links/{id}", h.Update)
	protectedMux.HandleFunc("DELETE /api/v1/links/{id}", h.Delete)
	protectedMux.HandleFunc("PUT /api/v1/links/{id}/status", h.SetStatus)
	protectedMux.HandleFunc("PUT /api/v1/links/{id}/tags", h.UpdateTags)
	protectedMux.HandleFunc("PUT /api/v1/links/{id}/folder", h.MoveToFolder)
	protectedMux.HandleFunc("POST /api/v1/links/{id}/restore", h.Restore)

	// Analytics Routes
	protectedMux.HandleFunc("GET /api/v1/links/{id}/timeseries", ah.Timeseries)
	protectedMux.HandleFunc("GET /api/v1/links/{id}/breakdown", ah.Breakdown)

	// Folder Routes
	protectedMux.HandleFunc("POST /api/v1/folders", fh.CreateFolder)
	protectedMux.HandleFunc("GET /api/v1/folders", fh.ListFolders)
	protectedMux.HandleFunc("DELETE /api/v1/folders/{id}", fh.DeleteFolder)

	// protectedMux holds the full paths, so /api/v1/ dispatches straight through.
	mux.Handle("/api/v1/", mw.AuthMiddleware(protectedMux))

	return MetricsMiddleware(mux)
}
