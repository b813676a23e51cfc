// Package httpx contains the HTTP delivery layer (net/http handlers) for
// Cinder. It maps HTTP requests onto the application services while
// enforcing size limits, request validation, security headers, and error
// translation. Handlers are split across files (upload.go, download.go,
// health.go, errors.go).
package httpx

import (
	"context"
	"net/http"

	"github.com/voltzug/cinder/internal/app"
	"github.com/voltzug/cinder/internal/domain"
)

// Uploader abstracts the subset of *app.UploadService used by the HTTP
// layer. It is satisfied by *app.UploadService in production and faked in
// tests.
type Uploader interface {
	Upload(ctx context.Context, req app.UploadRequest) (domain.LinkID, error)
}

// Downloader abstracts the subset of *app.DownloadService used by the HTTP
// layer.
type Downloader interface {
	InitSession(ctx context.Context, linkID domain.LinkID) (app.InitSessionResult, error)
	VerifyAndDownload(ctx context.Context, sessionID domain.SessionID, accessHash domain.AccessHash) (app.DownloadResult, error)
}

// Handler wires HTTP endpoints to the application services. It is safe for
// concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Upload    Uploader
	Download  Downloader
	MaxBody   int64                       // mirrors config MaxBytes (defense-in-depth)
	Readiness func(context.Context) error // optional readiness probe
}

// New returns a configured Handler.
func New(upload Uploader, download Downloader, maxBody int64, readiness func(context.Context) error) *Handler {
	return &Handler{Upload: upload, Download: download, MaxBody: maxBody, Readiness: readiness}
}

// Router constructs and returns an http.Handler with all routes mounted,
// correlation IDs attached, and security headers applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/files", h.handleUpload)        // POST
	mux.HandleFunc("/api/links/", h.handleLinks)        // POST /api/links/{id}/session
	mux.HandleFunc("/api/sessions/", h.handleSessions)  // POST /api/sessions/{id}/verify
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/readyz", h.handleReady)
	return CorrelationIDMiddleware(h.secureHeaders(mux))
}

// secureHeaders middleware adds standard security & cache control headers.
// This is a pure JSON API surface with no HTML or inline scripts, so the
// policy denies everything by default.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		next.ServeHTTP(w, r)
	})
}

// handleLinks dispatches /api/links/{linkID}/session.
func (h *Handler) handleLinks(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/links/"
	const suffix = "/session"
	path := r.URL.Path
	if len(path) <= len(prefix)+len(suffix) || path[:len(prefix)] != prefix || path[len(path)-len(suffix):] != suffix {
		h.writeError(r.Context(), w, http.StatusNotFound, "not found")
		return
	}
	linkID := path[len(prefix) : len(path)-len(suffix)]
	h.handleInitSession(w, r, linkID)
}

// handleSessions dispatches /api/sessions/{sessionID}/verify.
func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/sessions/"
	const suffix = "/verify"
	path := r.URL.Path
	if len(path) <= len(prefix)+len(suffix) || path[:len(prefix)] != prefix || path[len(path)-len(suffix):] != suffix {
		h.writeError(r.Context(), w, http.StatusNotFound, "not found")
		return
	}
	sessionID := path[len(prefix) : len(path)-len(suffix)]
	h.handleVerifyDownload(w, r, sessionID)
}
