// Package app defines the application layer "ports" (interfaces) and the
// use-case orchestration (upload and download state machines) that form the
// core of Cinder. It follows a hexagonal (ports & adapters) design: this
// package declares what the core needs, while adapter packages (SQLite +
// filesystem storage, the pepper service, the HTTP layer) provide concrete
// implementations. No I/O, logging, SQL, or network concerns belong here.
package app

import (
	"context"
	"io"
	"time"

	"github.com/voltzug/cinder/internal/domain"
)

// Clock abstracts time to enable deterministic testing of expiry and
// session-timeout logic.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// SecureFileRepository is the storage port for C5: the index of uploaded
// files. Records are immutable once persisted except through the two
// download-limit mutating operations; any other updater is undefined
// behavior.
type SecureFileRepository interface {
	// Save persists a new SecureFile record. The caller guarantees FileID
	// and LinkID are freshly allocated and unique.
	Save(ctx context.Context, f domain.SecureFile) error

	// FindByLinkID returns the record addressed by linkId, or
	// ErrFileNotFound if absent.
	FindByLinkID(ctx context.Context, linkID domain.LinkID) (domain.SecureFile, error)

	// DeleteByID removes the record addressed by fileId. Idempotent.
	DeleteByID(ctx context.Context, fileID domain.FileID) error

	// DeleteByLinkID removes the record addressed by linkId. Idempotent.
	DeleteByLinkID(ctx context.Context, linkID domain.LinkID) error

	// FindExpiredBefore returns every record whose expiry precedes t.
	FindExpiredBefore(ctx context.Context, t domain.Timestamp) ([]domain.SecureFile, error)
}

// DownloadLimitStore is the storage port for C7: the attempt-counting
// record that rides alongside each SecureFile.
type DownloadLimitStore interface {
	// Initialize creates or replaces the limit record for linkId.
	// remainingAttempts is seeded from specs.RetryCount. Pre-requires a
	// matching SecureFile to exist, else ErrInvalidLink.
	Initialize(ctx context.Context, linkID domain.LinkID, specs domain.FileSpecs, gateBox, gateContext []byte) error

	// Get returns the current DownloadLimit snapshot for linkId.
	Get(ctx context.Context, linkID domain.LinkID) (domain.DownloadLimit, error)

	// DecrementAttempts atomically applies
	// remainingAttempts := remainingAttempts - 1 where remainingAttempts > 0,
	// updates lastAttemptAt, and returns the resulting snapshot. If no row
	// satisfied the guard, it returns ErrMaxAttemptsExceeded. Implementations
	// must guarantee at-most-retryCount successes across concurrent callers
	// racing the same link (linearizable conditional update).
	DecrementAttempts(ctx context.Context, linkID domain.LinkID, now domain.Timestamp) (domain.DownloadLimit, error)

	// Delete removes the limit record for linkId. Idempotent.
	Delete(ctx context.Context, linkID domain.LinkID) error
}

// SessionCache is the storage port for C6: a key-value store of in-flight
// download sessions with lazy TTL expiry.
type SessionCache interface {
	// Save rejects an already-expired session with ErrInvalidSession.
	Save(ctx context.Context, s domain.Session) error

	// Get returns the session if present and not expired. If expired, the
	// implementation deletes it and returns ErrInvalidSession.
	Get(ctx context.Context, id domain.SessionID) (domain.Session, error)

	// Delete is idempotent.
	Delete(ctx context.Context, id domain.SessionID) error
}

// FileStore is the storage port for C8: opaque blob storage keyed by path
// reference. Path references are server-chosen and never derived from user
// input or from the blob's content.
type FileStore interface {
	// Save streams exactly size bytes from r to a freshly chosen path and
	// returns that reference.
	Save(ctx context.Context, r io.Reader, size int64) (domain.PathReference, error)

	// Load opens the blob at ref for reading.
	Load(ctx context.Context, ref domain.PathReference) (io.ReadCloser, error)

	// Delete removes the blob at ref. Best-effort: callers treat failure as
	// loggable, not fatal, since it runs on cleanup/rollback paths.
	Delete(ctx context.Context, ref domain.PathReference) error
}

// Metrics defines the minimal counter and histogram interface the Service
// depends on. It is satisfied by internal/metrics.Manager without importing
// that package here, avoiding a dependency cycle. Counter and histogram
// names are owned by this package (see metrics_names.go), not by
// internal/metrics, which stays a generic storage/batching engine.
type Metrics interface {
	Inc(name string, delta int64)
	Observe(name string, value int64)
}

// Pepper is the AEAD seal/unseal port (C3), satisfied by internal/pepper.Service.
type Pepper interface {
	Seal(plain []byte) (domain.SealedBlob, error)
	Unseal(sealed domain.SealedBlob) ([]byte, error)
}

// CryptoProvider is the port onto C2, satisfied by internal/crypto.Provider.
type CryptoProvider interface {
	VerifyHMAC(secret domain.SessionSecret, data []byte, expected domain.Hmac) (bool, error)
}
