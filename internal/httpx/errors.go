package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/voltzug/cinder/internal/domain"
)

// writeError writes a JSON error body with the given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
	if cid, ok := GetCorrelationID(ctx); ok {
		slog.Debug("wrote error response", "cid", cid, "status", code, "msg", msg)
	}
}

// mapServiceError maps domain errors to HTTP responses. Every call site in
// this package routes through here so the mapping stays in one place.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	switch {
	case errors.Is(err, domain.ErrFileNotFound):
		slog.Info("service error", "cid", cid, "code", "not_found")
		h.writeError(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrFileExpired):
		slog.Info("service error", "cid", cid, "code", "expired")
		h.writeError(ctx, w, http.StatusGone, "file expired")
	case errors.Is(err, domain.ErrMaxAttemptsExceeded):
		slog.Warn("service error", "cid", cid, "code", "max_attempts_exceeded")
		h.writeError(ctx, w, http.StatusTooManyRequests, "max attempts exceeded")
	case errors.Is(err, domain.ErrInvalidSession):
		slog.Info("service error", "cid", cid, "code", "invalid_session")
		h.writeError(ctx, w, http.StatusUnauthorized, "invalid session")
	case errors.Is(err, domain.ErrAccessVerification):
		slog.Warn("service error", "cid", cid, "code", "access_verification_failed")
		h.writeError(ctx, w, http.StatusForbidden, "access verification failed")
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrNullOrEmpty),
		errors.Is(err, domain.ErrSizeError), errors.Is(err, domain.ErrFormatError),
		errors.Is(err, domain.ErrSizeMismatch), errors.Is(err, domain.ErrInvalidIDPrefix),
		errors.Is(err, domain.ErrInvalidLink), errors.Is(err, domain.ErrTimestampSkew):
		slog.Warn("service error", "cid", cid, "code", "invalid_request")
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrCryptoError):
		slog.Error("service error", "cid", cid, "code", "crypto_error")
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	case errors.Is(err, domain.ErrStorageError):
		slog.Error("service error", "cid", cid, "code", "storage_error")
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	default:
		// Internal / unexpected: do not log the raw error string, it may carry
		// ids or paths.
		slog.Error("unhandled service error", "cid", cid, "code", "unhandled")
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}
