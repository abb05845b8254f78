package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its taxonomy kind. notOwned is the status used
// for ErrNotOwned: 404 where existence must not leak, 403 for mutations.
func writeError(w http.ResponseWriter, log *slog.Logger, err error, notOwned int) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	msg := err.Error()

	switch kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindNotOwned:
		status = notOwned
		if notOwned == http.StatusNotFound {
			kind, msg = domain.KindNotFound, domain.ErrNotFound.Error()
		}
	case domain.KindInvalidInput:
		status = http.StatusBadRequest
	case domain.KindConflict:
		status = http.StatusConflict
	default:
		log.Error("request failed", "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: kind, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fmt.Errorf("%w: malformed JSON at offset %d", domain.ErrInvalidInput, syntaxErr.Offset)
		}
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
