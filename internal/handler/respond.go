package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/templui/marketplace/internal/ctxkeys"
	"github.com/templui/marketplace/internal/repository"
	"github.com/templui/marketplace/internal/service"
	"github.com/templui/marketplace/internal/storage"
)

const maxBodyBytes = 64 << 10

func init() {
	// prices go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// writeServiceError maps a lifecycle failure to its status and error code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Item not found")
	case errors.Is(err, service.ErrItemSold):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Item is sold and can no longer be changed")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not allowed to do this")
	case errors.Is(err, service.ErrConflict), errors.Is(err, repository.ErrPreconditionFailed):
		writeError(w, http.StatusConflict, "CONFLICT", "Item was changed by another request")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
	case errors.Is(err, repository.ErrDataIntegrity):
		logRequestError(r, "item data integrity violation", err)
		writeError(w, http.StatusInternalServerError, "DATA_INTEGRITY", "Item data is inconsistent")
	case errors.Is(err, repository.ErrStorage), errors.Is(err, storage.ErrStorage):
		logRequestError(r, "storage failure", err)
		writeError(w, http.StatusServiceUnavailable, "STORAGE_FAILURE", "Storage is unavailable, please retry")
	default:
		logRequestError(r, "unexpected error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
	}
}

func logRequestError(r *http.Request, msg string, err error) {
	slog.Error(msg,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"user_id", ctxkeys.UserID(r.Context()),
		"request_id", ctxkeys.RequestID(r.Context()),
	)
}

// decodeJSON reads a size-limited JSON body into dst. An empty body is
// accepted when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body")
		return false
	}
	return true
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
}
