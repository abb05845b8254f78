package handler

import (
	"log/slog"
	"net/http"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

type BulkHandler struct {
	service ports.BulkService
	folders ports.FolderService
	logger  *slog.Logger
}

func NewBulkHandler(service ports.BulkService, folders ports.FolderService, logger *slog.Logger) *BulkHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkHandler{service: service, folders: folders, logger: logger}
}

type bulkRequest struct {
	Op      string             `json:"op"`
	IDs     []string           `json:"ids"`
	Payload domain.BulkPayload `json:"payload"`
}

// Apply serves POST /api/v1/links/bulk. Per-id failures are in the report;
// only structural errors fail the request.
func (h *BulkHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	owner := OwnerFromContext(r.Context())

	if domain.BulkOp(req.Op) == domain.BulkMoveToFolder && req.Payload.FolderID != nil && *req.Payload.FolderID != "" {
		if err := h.folders.EnsureOwned(r.Context(), owner, *req.Payload.FolderID); err != nil {
			writeError(w, h.logger, err, http.StatusForbidden)
			return
		}
	}

	report, err := h.service.Apply(r.Context(), owner, req.Op, req.IDs, req.Payload)
	if err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
