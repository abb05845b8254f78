package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

type AnalyticsHandler struct {
	service ports.AnalyticsService
	logger  *slog.Logger
}

func NewAnalyticsHandler(service ports.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsHandler{service: service, logger: logger}
}

// Timeseries serves GET /api/v1/links/{id}/timeseries?from&to.
func (h *AnalyticsHandler) Timeseries(w http.ResponseWriter, r *http.Request) {
	rq, err := parseRange(r)
	if err != nil {
		writeError(w, h.logger, err, http.StatusNotFound)
		return
	}

	ts, err := h.service.GetTimeseries(r.Context(), OwnerFromContext(r.Context()), r.PathValue("id"), rq)
	if err != nil {
		writeError(w, h.logger, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

// Breakdown serves GET /api/v1/links/{id}/breakdown?dimension&limit&from&to.
func (h *AnalyticsHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	rq, err := parseRange(r)
	if err != nil {
		writeError(w, h.logger, err, http.StatusNotFound)
		return
	}
	q := domain.BreakdownQuery{RangeQuery: rq, Dimension: r.URL.Query().Get("dimension")}
	if s := r.URL.Query().Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil {
			writeError(w, h.logger, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidInput), http.StatusNotFound)
			return
		}
	}

	bd, err := h.service.GetBreakdown(r.Context(), OwnerFromContext(r.Context()), r.PathValue("id"), q)
	if err != nil {
		writeError(w, h.logger, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, bd)
}

func parseRange(r *http.Request) (domain.RangeQuery, error) {
	var rq domain.RangeQuery
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &rq.From}, {"to", &rq.To}} {
		s := r.URL.Query().Get(p.name)
		if s == "" {
			continue
		}
		t, err := parseDay(s)
		if err != nil {
			return rq, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD", domain.ErrInvalidRange, p.name)
		}
		*p.dst = &t
	}
	return rq, nil
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(domain.DayLayout, s)
}
