package httpx

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/voltzug/cinder/internal/domain"
)

// handleInitSession implements POST /api/links/{linkID}/session (C10:
// ISSUED -> CHALLENGED).
func (h *Handler) handleInitSession(w http.ResponseWriter, r *http.Request, linkIDStr string) {
	if r.Method != http.MethodPost {
		h.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cid, _ := GetCorrelationID(r.Context())
	clog := slog.With("domain", "download", "cid", cid)

	linkID, err := domain.ParseLinkID(linkIDStr)
	if err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid link")
		return
	}

	result, err := h.Download.InitSession(r.Context(), linkID)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		clog.Warn("init_session", "action", "error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		SessionID   string `json:"session_id"`
		GateContext string `json:"gate_context,omitempty"`
	}{
		SessionID:   result.SessionID.String(),
		GateContext: base64.StdEncoding.EncodeToString(result.GateContext),
	})
	clog.Info("init_session", "action", "success")
}

// verifyRequest is the JSON body of POST /api/sessions/{sessionID}/verify.
type verifyRequest struct {
	AccessHash string `json:"access_hash"`
}

// handleVerifyDownload implements POST /api/sessions/{sessionID}/verify
// (C10: CHALLENGED -> DELIVERED -> BURNED).
func (h *Handler) handleVerifyDownload(w http.ResponseWriter, r *http.Request, sessionIDStr string) {
	if r.Method != http.MethodPost {
		h.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cid, _ := GetCorrelationID(r.Context())
	clog := slog.With("domain", "download", "cid", cid)

	sessionID, err := domain.ParseSessionID(sessionIDStr)
	if err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid session")
		return
	}

	var req verifyRequest
	body := http.MaxBytesReader(w, r.Body, 4096)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid request body")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.AccessHash)
	if err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid access hash encoding")
		return
	}
	accessHash, err := domain.NewAccessHash(raw)
	if err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid access hash")
		return
	}

	result, err := h.Download.VerifyAndDownload(r.Context(), sessionID, accessHash)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		clog.Warn("verify_download", "action", "error")
		return
	}
	defer result.Blob.Close()
	defer zero(result.Envelope)
	defer zero(result.Salt)

	w.Header().Set("X-Cinder-Envelope", base64.StdEncoding.EncodeToString(result.Envelope))
	w.Header().Set("X-Cinder-Salt", base64.StdEncoding.EncodeToString(result.Salt))
	w.Header().Set("Content-Type", "application/octet-stream")
	// A BlobSize of zero means the length is not known: the blob is then
	// streamed to EOF without a Content-Length header.
	if result.BlobSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.BlobSize, 10))
	}
	w.WriteHeader(http.StatusOK)
	var copyErr error
	if result.BlobSize > 0 {
		_, copyErr = io.CopyN(w, result.Blob, result.BlobSize)
	} else {
		_, copyErr = io.Copy(w, result.Blob)
	}
	if copyErr != nil {
		clog.Error("verify_download", "action", "error")
		return
	}
	clog.Info("verify_download", "action", "success")
}

func zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
