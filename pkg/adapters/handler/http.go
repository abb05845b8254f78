package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

type HTTPHandler struct {
	service ports.LinkService
	folders ports.FolderService
	clicks  ports.ClickSink
	baseURL string
	logger  *slog.Logger
}

func NewHTTPHandler(service ports.LinkService, folders ports.FolderService, clicks ports.ClickSink, baseURL string, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{
		service: service,
		folders: folders,
		clicks:  clicks,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	LongURL string   `json:"long_url"`
	Slug    string   `json:"slug,omitempty"`
	Title   string   `json:"title,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// UpdateLinkRequest payload; absent fields are left unchanged.
type UpdateLinkRequest struct {
	LongURL *string `json:"long_url,omitempty"`
	Title   *string `json:"title,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

type folderRequest struct {
	FolderID *string `json:"folder_id"`
}

type linkResponse struct {
	*domain.Link
	ShortURL string `json:"short_url"`
}

func (h *HTTPHandler) present(link *domain.Link) linkResponse {
	return linkResponse{Link: link, ShortURL: h.baseURL + "/" + link.Slug}
}

// Redirect to the long URL of an active link. Every failure is a plain 404.
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	link, err := h.service.Resolve(r.Context(), slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.Redirects.WithLabelValues("miss").Inc()
		} else {
			metrics.Redirects.WithLabelValues("error").Inc()
			h.logger.Error("resolve failed", "slug", slug, "error", err)
		}
		http.Error(w, "Link not found", http.StatusNotFound)
		return
	}
	metrics.Redirects.WithLabelValues("hit").Inc()

	// Clicks are recorded off the request path (skipped with ?no_stat=1).
	if r.URL.Query().Get("no_stat") == "" && h.clicks != nil {
		h.clicks.Enqueue(domain.RawClick{
			LinkID:      link.ID,
			Slug:        link.Slug,
			At:          time.Now().UTC(),
			IP:          clientIP(r),
			Referer:     r.Referer(),
			UserAgent:   r.UserAgent(),
			CountryHint: r.Header.Get("CF-IPCountry"),
		})
	}

	http.Redirect(w, r, link.RedirectTarget(), http.StatusFound)
}

// clientIP prefers the first X-Forwarded-For hop.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Shorten creates an anonymous link.
func (h *HTTPHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}

	link, err := h.service.Create(r.Context(), ports.CreateLinkInput{LongURL: req.LongURL, Slug: req.Slug, Title: req.Title})
	if err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusCreated, h.present(link))
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}

	link, err := h.service.Create(r.Context(), ports.CreateLinkInput{
		LongURL: req.LongURL,
		OwnerID: OwnerFromContext(r.Context()),
		Slug:    req.Slug,
		Title:   req.Title,
		Tags:    req.Tags,
	})
	if err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusCreated, h.present(link))
}

// List Links
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	limit = domain.PageLimit(limit)

	filter := domain.LinkFilter{
		Tag:    q.Get("tag"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if s := q.Get("status"); s != "" {
		status, err := domain.ParseStatus(s)
		if err != nil {
			writeError(w, h.logger, err, http.StatusForbidden)
			return
		}
		filter.Status = status
	}
	switch folder := q.Get("folder"); folder {
	case "":
	case "none":
		filter.Unfiled = true
	default:
		filter.FolderID = folder
	}

	links, count, err := h.service.ListLinks(r.Context(), OwnerFromContext(r.Context()), filter)
	if err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}

	data := make([]linkResponse, 0, len(links))
	for i := range links {
		data = append(data, h.present(&links[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  data,
		"total": count,
		"page":  page,
		"limit": limit,
	})
}

// Get Link
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.GetLink(r.Context(), r.PathValue("id"), OwnerFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.present(link))
}

// Update Link
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	link, err := h.service.UpdateLink(r.Context(), r.PathValue("id"), OwnerFromContext(r.Context()), req.LongURL, req.Title)
	h.respondLink(w, link, err)
}

func (h *HTTPHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	link, err := h.service.SetStatus(r.Context(), r.PathValue("id"), OwnerFromContext(r.Context()), req.Status)
	h.respondLink(w, link, err)
}

func (h *HTTPHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	var req tagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	link, err := h.service.UpdateTags(r.Context(), r.PathValue("id"), OwnerFromContext(r.Context()), req.Tags)
	h.respondLink(w, link, err)
}

// MoveToFolder files a link; a null folder_id unfiles it.
func (h *HTTPHandler) MoveToFolder(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	owner := OwnerFromContext(r.Context())
	if req.FolderID != nil && *req.FolderID != "" {
		if err := h.folders.EnsureOwned(r.Context(), owner, *req.FolderID); err != nil {
			writeError(w, h.logger, err, http.StatusForbidden)
			return
		}
	}
	link, err := h.service.MoveToFolder(r.Context(), r.PathValue("id"), owner, req.FolderID)
	h.respondLink(w, link, err)
}

// Delete disables the link; ?hard=true removes it permanently.
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, owner := r.PathValue("id"), OwnerFromContext(r.Context())

	if hard, _ := strconv.ParseBool(r.URL.Query().Get("hard")); hard {
		if _, err := h.service.HardDelete(r.Context(), id, owner); err != nil {
			writeError(w, h.logger, err, http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	link, err := h.service.SoftDelete(r.Context(), id, owner)
	h.respondLink(w, link, err)
}

func (h *HTTPHandler) Restore(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.Restore(r.Context(), r.PathValue("id"), OwnerFromContext(r.Context()))
	h.respondLink(w, link, err)
}

func (h *HTTPHandler) respondLink(w http.ResponseWriter, link *domain.Link, err error) {
	if err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, h.present(link))
}
