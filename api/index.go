package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/app"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/config"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "json"})

	// On Vercel, db.sqlite is ephemeral unless DATABASE_URL points at Turso.
	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		panic(err)
	}
	mux = application.Handler
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
