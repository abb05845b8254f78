package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/config"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/classifier"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/services"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/logger"
)

const testSecret = "handler-test-secret"

type captureSink struct {
	mu     sync.Mutex
	clicks []domain.RawClick
}

func (s *captureSink) Enqueue(raw domain.RawClick) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, raw)
	return true
}

func (s *captureSink) all() []domain.RawClick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RawClick(nil), s.clicks...)
}

type testServer struct {
	router   http.Handler
	sink     *captureSink
	recorder *services.ClickRecorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo, err := sqlite.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	log := logger.Discard()
	agg := memory.NewAggregateStore(0)
	links := services.NewLinkService(repo, agg, log)
	folders := services.NewFolderService(repo, log)
	recorder := services.NewClickRecorder(repo, classifier.New(nil, 0, log), agg, 8, 1, log)
	t.Cleanup(func() { _ = recorder.Close(context.Background()) })

	sink := &captureSink{}
	cfg := &config.Config{JWTSecret: testSecret, BaseURL: "http://sho.rt"}
	router := NewRouter(cfg, Services{
		Links:     links,
		Analytics: services.NewAnalyticsService(repo, agg),
		Bulk:      services.NewBulkService(links, 4, 50, log),
		Folders:   folders,
		Clicks:    sink,
	}, log)

	return &testServer{router: router, sink: sink, recorder: recorder}
}

func (s *testServer) do(t *testing.T, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if owner != "" {
		token, _, err := IssueToken([]byte(testSecret), owner, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) createLink(t *testing.T, owner string) linkBody {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/v1/links", owner, map[string]any{"long_url": "example.com/page", "tags": []string{"Go"}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[linkBody](t, rr)
}

type linkBody struct {
	ID       string   `json:"id"`
	Slug     string   `json:"slug"`
	LongURL  string   `json:"long_url"`
	Status   string   `json:"status"`
	Tags     []string `json:"tags"`
	FolderID *string  `json:"folder_id"`
	ShortURL string   `json:"short_url"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestRedirect(t *testing.T) {
	s := newTestServer(t)
	link := s.createLink(t, "alice")
	assert.Equal(t, "http://sho.rt/"+link.Slug, link.ShortURL)
	assert.Equal(t, "https://example.com/page", link.LongURL)

	req := httptest.NewRequest(http.MethodGet, "/"+link.Slug, nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("Referer", "https://t.co/abc")
	req.Header.Set("CF-IPCountry", "us")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://example.com/page", rr.Header().Get("Location"))

	clicks := s.sink.all()
	require.Len(t, clicks, 1)
	assert.Equal(t, link.ID, clicks[0].LinkID)
	assert.Equal(t, "203.0.113.9", clicks[0].IP)
	assert.Equal(t, "https://t.co/abc", clicks[0].Referer)
	assert.Equal(t, "us", clicks[0].CountryHint)

	rr = s.do(t, http.MethodGet, "/"+link.Slug+"?no_stat=1", "", nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Len(t, s.sink.all(), 1, "no_stat skips click recording")

	rr = s.do(t, http.MethodGet, "/missing1", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodPut, "/api/v1/links/"+link.ID+"/status", "alice", map[string]string{"status": "paused"})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = s.do(t, http.MethodGet, "/"+link.Slug, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "paused links do not redirect")
	assert.Len(t, s.sink.all(), 1)
}

func TestShortenAnonymous(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/shorten", "", map[string]string{"long_url": "https://go.dev"})
	require.Equal(t, http.StatusCreated, rr.Code)
	link := decode[linkBody](t, rr)

	rr = s.do(t, http.MethodGet, "/api/v1/links/"+link.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "anonymous links are owned by nobody")

	rr = s.do(t, http.MethodPost, "/shorten", "", map[string]string{"long_url": "javascript:alert(1)"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.KindInvalidInput, decode[errorResponse](t, rr).Error)
}

func TestLinkErrorMapping(t *testing.T) {
	s := newTestServer(t)
	link := s.createLink(t, "alice")

	tests := []struct {
		name   string
		method string
		path   string
		owner  string
		body   any
		status int
		kind   string
	}{
		{"unauthenticated", http.MethodGet, "/api/v1/links", "", nil, http.StatusUnauthorized, "unauthorized"},
		{"get foreign link hides existence", http.MethodGet, "/api/v1/links/" + link.ID, "bob", nil, http.StatusNotFound, domain.KindNotFound},
		{"mutate foreign link", http.MethodPut, "/api/v1/links/" + link.ID + "/tags", "bob", map[string]any{"tags": []string{"x"}}, http.StatusForbidden, domain.KindNotOwned},
		{"unknown link", http.MethodDelete, "/api/v1/links/nope", "alice", nil, http.StatusNotFound, domain.KindNotFound},
		{"bad status", http.MethodPut, "/api/v1/links/" + link.ID + "/status", "alice", map[string]string{"status": "archived"}, http.StatusBadRequest, domain.KindInvalidInput},
		{"slug taken", http.MethodPost, "/api/v1/links", "alice", map[string]string{"long_url": "example.com", "slug": link.Slug}, http.StatusConflict, domain.KindConflict},
		{"malformed body", http.MethodPatch, "/api/v1/links/" + link.ID, "alice", "{", http.StatusBadRequest, domain.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, tt.method, tt.path, tt.owner, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Equal(t, tt.kind, decode[errorResponse](t, rr).Error)
		})
	}
}

func TestLinkLifecycle(t *testing.T) {
	s := newTestServer(t)
	link := s.createLink(t, "alice")
	s.createLink(t, "alice")
	s.createLink(t, "bob")

	rr := s.do(t, http.MethodGet, "/api/v1/links?limit=1&page=2", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[struct {
		Data  []linkBody `json:"data"`
		Total int64      `json:"total"`
		Page  int        `json:"page"`
	}](t, rr)
	assert.EqualValues(t, 2, page.Total)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 2, page.Page)

	rr = s.do(t, http.MethodGet, "/api/v1/links?limit=500", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	capped := decode[struct {
		Limit int `json:"limit"`
	}](t, rr)
	assert.Equal(t, domain.MaxPageSize, capped.Limit)

	rr = s.do(t, http.MethodPatch, "/api/v1/links/"+link.ID, "alice", map[string]string{"long_url": "go.dev"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://go.dev", decode[linkBody](t, rr).LongURL)

	rr = s.do(t, http.MethodDelete, "/api/v1/links/"+link.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "disabled", decode[linkBody](t, rr).Status)

	rr = s.do(t, http.MethodGet, "/api/v1/links?status=disabled", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), link.ID)

	rr = s.do(t, http.MethodPost, "/api/v1/links/"+link.ID+"/restore", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "active", decode[linkBody](t, rr).Status)

	rr = s.do(t, http.MethodDelete, "/api/v1/links/"+link.ID+"?hard=true", "alice", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = s.do(t, http.MethodGet, "/api/v1/links/"+link.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFoldersAndMove(t *testing.T) {
	s := newTestServer(t)
	link := s.createLink(t, "alice")

	rr := s.do(t, http.MethodPost, "/api/v1/folders", "alice", map[string]string{"name": "campaigns"})
	require.Equal(t, http.StatusCreated, rr.Code)
	folder := decode[domain.Folder](t, rr)

	rr = s.do(t, http.MethodPost, "/api/v1/folders", "bob", map[string]string{"name": "mine"})
	require.Equal(t, http.StatusCreated, rr.Code)
	bobFolder := decode[domain.Folder](t, rr)

	rr = s.do(t, http.MethodPut, "/api/v1/links/"+link.ID+"/folder", "alice", map[string]string{"folder_id": bobFolder.ID})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodPut, "/api/v1/links/"+link.ID+"/folder", "alice", map[string]string{"folder_id": folder.ID})
	require.Equal(t, http.StatusOK, rr.Code)
	moved := decode[linkBody](t, rr)
	require.NotNil(t, moved.FolderID)
	assert.Equal(t, folder.ID, *moved.FolderID)

	rr = s.do(t, http.MethodGet, "/api/v1/links?folder=none", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), link.ID)

	rr = s.do(t, http.MethodDelete, "/api/v1/folders/"+folder.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/v1/links/"+link.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decode[linkBody](t, rr).FolderID)
}

func TestBulkEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := s.createLink(t, "alice")
	b := s.createLink(t, "alice")
	foreign := s.createLink(t, "bob")

	rr := s.do(t, http.MethodPost, "/api/v1/links/bulk", "alice", map[string]any{
		"op":  "pause",
		"ids": []string{a.ID, foreign.ID, "missing", b.ID},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	report := decode[domain.BulkReport](t, rr)
	assert.Equal(t, []string{a.ID, b.ID}, report.Succeeded)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, domain.KindNotOwned, report.Failed[0].Kind)
	assert.Equal(t, domain.KindNotFound, report.Failed[1].Kind)

	rr = s.do(t, http.MethodPost, "/api/v1/links/bulk", "alice", map[string]any{"op": "explode", "ids": []string{a.ID}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/v1/links/bulk", "alice", map[string]any{
		"op":      "moveToFolder",
		"ids":     []string{a.ID},
		"payload": map[string]string{"folderId": "no-such-folder"},
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	s := newTestServer(t)
	link := s.createLink(t, "alice")
	clickDay := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)

	for i, c := range []string{"US", "US", "DE"} {
		require.NoError(t, s.recorder.Process(context.Background(), domain.RawClick{
			LinkID:      link.ID,
			Slug:        link.Slug,
			At:          clickDay.Add(time.Duration(i) * time.Hour),
			CountryHint: c,
		}))
	}

	rr := s.do(t, http.MethodGet, "/api/v1/links/"+link.ID+"/timeseries?from=2026-07-13&to=2026-07-15", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	ts := decode[struct {
		Series []struct {
			Day   string `json:"day"`
			Total int64  `json:"total"`
		} `json:"series"`
		Total int64 `json:"total"`
	}](t, rr)
	assert.EqualValues(t, 3, ts.Total)
	require.Len(t, ts.Series, 3)
	assert.Equal(t, "2026-07-14", ts.Series[1].Day)
	assert.EqualValues(t, 3, ts.Series[1].Total)

	rr = s.do(t, http.MethodGet, "/api/v1/links/"+link.ID+"/breakdown?dimension=country&from=2026-07-14T00:00:00Z&to=2026-07-14", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	bd := decode[domain.Breakdown](t, rr)
	assert.Equal(t, []domain.LabelCount{{Label: "US", Count: 2}, {Label: "DE", Count: 1}}, bd.Rows)

	tests := []struct {
		name   string
		path   string
		owner  string
		status int
	}{
		{"foreign owner", "/timeseries", "bob", http.StatusNotFound},
		{"bad date", "/timeseries?from=yesterday", "alice", http.StatusBadRequest},
		{"inverted range", "/timeseries?from=2026-07-15&to=2026-07-14", "alice", http.StatusBadRequest},
		{"bad dimension", "/breakdown?dimension=browser", "alice", http.StatusBadRequest},
		{"bad limit", "/breakdown?limit=ten", "alice", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodGet, "/api/v1/links/"+link.ID+tt.path, tt.owner, nil)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"ok"}`, rr.Body.String())
}
