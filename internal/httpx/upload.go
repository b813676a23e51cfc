package httpx

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/voltzug/cinder/internal/app"
	"github.com/voltzug/cinder/internal/domain"
)

// uploadMeta holds the parsed-but-not-yet-validated request metadata needed
// to start an upload. Envelope, Salt, and GateHash arrive base64-encoded in
// headers since the request body carries only the opaque blob.
type uploadMeta struct {
	contentLength int64
	envelope      []byte
	salt          []byte
	gateHash      []byte
	gateContext   []byte
	expiry        time.Time
	retryCount    int
	userID        domain.UserID
}

func checkUploadMethod(r *http.Request) error {
	if r.Method != http.MethodPost {
		return errors.New("method not allowed")
	}
	if r.URL.Path != "/api/files" {
		return errors.New("not found")
	}
	return nil
}

func (h *Handler) parseContentLength(r *http.Request) (int64, error) {
	clHeader := r.Header.Get("Content-Length")
	if clHeader == "" {
		return 0, errors.New("content length required")
	}
	cl, err := strconv.ParseInt(clHeader, 10, 64)
	if err != nil || cl <= 0 {
		return 0, errors.New("invalid content length")
	}
	if h.MaxBody > 0 && cl > h.MaxBody {
		return 0, errors.New("size exceeded")
	}
	return cl, nil
}

func decodeBase64Header(r *http.Request, header string, required bool) ([]byte, error) {
	v := r.Header.Get(header)
	if v == "" {
		if required {
			return nil, errors.New("missing required headers")
		}
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, errors.New("invalid header encoding")
	}
	return b, nil
}

func parseUploadHeaders(r *http.Request) (envelope, salt, gateHash, gateContext []byte, expiry time.Time, retryCount int, userID domain.UserID, err error) {
	envelope, err = decodeBase64Header(r, "X-Cinder-Envelope", true)
	if err != nil {
		return
	}
	salt, err = decodeBase64Header(r, "X-Cinder-Salt", true)
	if err != nil {
		return
	}
	gateHash, err = decodeBase64Header(r, "X-Cinder-Gate-Hash", true)
	if err != nil {
		return
	}
	gateContext, err = decodeBase64Header(r, "X-Cinder-Gate-Context", false)
	if err != nil {
		return
	}

	expiryStr := r.Header.Get("X-Cinder-Expiry")
	if expiryStr == "" {
		err = errors.New("missing required headers")
		return
	}
	expiry, err = time.Parse(time.RFC3339, expiryStr)
	if err != nil {
		err = errors.New("invalid expiry")
		return
	}

	retryStr := r.Header.Get("X-Cinder-Retry-Count")
	if retryStr == "" {
		err = errors.New("missing required headers")
		return
	}
	retryCount, err = strconv.Atoi(retryStr)
	if err != nil {
		err = errors.New("invalid retry count")
		return
	}

	if uidStr := r.Header.Get("X-Cinder-User-Id"); uidStr != "" {
		userID, err = domain.ParseUserID(uidStr)
		if err != nil {
			err = errors.New("invalid user id")
			return
		}
	}
	return
}

func (h *Handler) parseAndValidateUpload(r *http.Request) (*uploadMeta, error) {
	if err := checkUploadMethod(r); err != nil {
		return nil, err
	}
	cl, err := h.parseContentLength(r)
	if err != nil {
		return nil, err
	}
	envelope, salt, gateHash, gateContext, expiry, retryCount, userID, err := parseUploadHeaders(r)
	if err != nil {
		return nil, err
	}
	return &uploadMeta{
		contentLength: cl,
		envelope:      envelope,
		salt:          salt,
		gateHash:      gateHash,
		gateContext:   gateContext,
		expiry:        expiry,
		retryCount:    retryCount,
		userID:        userID,
	}, nil
}

// classifyUploadError maps request-parsing error messages to HTTP status
// codes, keeping handleUpload itself concise.
func classifyUploadError(err error) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, "internal error"
	}
	lookup := map[string]int{
		"method not allowed":       http.StatusMethodNotAllowed,
		"not found":                http.StatusNotFound,
		"content length required":  http.StatusLengthRequired,
		"invalid content length":   http.StatusBadRequest,
		"size exceeded":            http.StatusRequestEntityTooLarge,
		"missing required headers": http.StatusBadRequest,
		"invalid header encoding":  http.StatusBadRequest,
		"invalid expiry":           http.StatusBadRequest,
		"invalid retry count":      http.StatusBadRequest,
		"invalid user id":          http.StatusBadRequest,
	}
	msg := err.Error()
	if code, ok := lookup[msg]; ok {
		return code, msg
	}
	return http.StatusBadRequest, "bad request"
}

// handleUpload implements POST /api/files (C9: IDLE -> ... -> DONE).
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	meta, err := h.parseAndValidateUpload(r)
	if err != nil {
		code, msg := classifyUploadError(err)
		h.writeError(r.Context(), w, code, msg)
		return
	}
	body := http.MaxBytesReader(w, r.Body, meta.contentLength)
	defer body.Close()

	linkID, err := h.Upload.Upload(r.Context(), app.UploadRequest{
		Blob:        body,
		BlobSize:    meta.contentLength,
		Envelope:    meta.envelope,
		Salt:        meta.salt,
		GateHash:    meta.gateHash,
		GateContext: meta.gateContext,
		ExpiryDate:  domain.NewTimestamp(meta.expiry),
		RetryCount:  meta.retryCount,
		UserID:      meta.userID,
	})
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(struct {
		LinkID string `json:"link_id"`
	}{LinkID: linkID.String()})
}
