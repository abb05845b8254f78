package handler

import (
	"log/slog"
	"net/http"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

type FolderHandler struct {
	service ports.FolderService
	logger  *slog.Logger
}

func NewFolderHandler(service ports.FolderService, logger *slog.Logger) *FolderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderHandler{service: service, logger: logger}
}

type createFolderRequest struct {
	Name string `json:"name"`
}

func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}

	folder, err := h.service.CreateFolder(r.Context(), OwnerFromContext(r.Context()), req.Name)
	if err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (h *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.service.ListFolders(r.Context(), OwnerFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": folders})
}

// DeleteFolder unfiles the folder's links, then removes it.
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFolder(r.Context(), OwnerFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
