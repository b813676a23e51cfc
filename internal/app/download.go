package app

import (
	"context"
	"io"
	"time"

	"github.com/voltzug/cinder/internal/domain"
)

// DownloadService orchestrates the two-phase download state machine (C10):
// InitSession followed by VerifyAndDownload.
type DownloadService struct {
	Files      FileStore
	Repository SecureFileRepository
	Limits     DownloadLimitStore
	Sessions   SessionCache
	Pepper     Pepper
	Clock      Clock
	Metrics    Metrics // optional; nil disables counters

	// SessionTimeout bounds the lifetime of a challenge session created by
	// InitSession (config key session.timeoutSeconds). Zero falls back to
	// defaultSessionTimeout.
	SessionTimeout time.Duration
}

// InitSessionResult is returned by InitSession.
type InitSessionResult struct {
	SessionID   domain.SessionID
	GateContext []byte
}

// InitSession implements ISSUED -> CHALLENGED.
func (s *DownloadService) InitSession(ctx context.Context, linkID domain.LinkID) (InitSessionResult, error) {
	file, err := s.Repository.FindByLinkID(ctx, linkID)
	if err != nil {
		return InitSessionResult{}, err
	}
	now := domain.NewTimestamp(s.Clock.Now())
	if file.IsExpired(now) {
		return InitSessionResult{}, domain.ErrFileExpired
	}

	limit, err := s.Limits.Get(ctx, linkID)
	if err != nil {
		return InitSessionResult{}, err
	}
	if limit.RemainingAttempts <= 0 {
		return InitSessionResult{}, domain.ErrMaxAttemptsExceeded
	}

	sessionID := domain.NewSessionID()
	link := linkID
	sess := domain.Session{
		ID:        sessionID,
		LinkID:    &link,
		Mode:      domain.ModeDownload,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTimeout()),
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return InitSessionResult{}, err
	}

	return InitSessionResult{SessionID: sessionID, GateContext: file.GateContext}, nil
}

// DownloadResult carries the plaintext payload handed back to the HTTP
// layer. The caller is responsible for transmitting and then zeroizing
// Envelope and Salt.
type DownloadResult struct {
	Blob     io.ReadCloser
	BlobSize int64
	Envelope []byte
	Salt     []byte
}

// VerifyAndDownload implements CHALLENGED -> DELIVERED -> BURNED, or stays
// CHALLENGED (minus one attempt) on a failed verification.
func (s *DownloadService) VerifyAndDownload(ctx context.Context, sessionID domain.SessionID, accessHash domain.AccessHash) (DownloadResult, error) {
	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return DownloadResult{}, domain.ErrInvalidSession
	}
	now := domain.NewTimestamp(s.Clock.Now())
	if sess.Mode != domain.ModeDownload || sess.LinkID == nil || sess.IsExpired(now) {
		return DownloadResult{}, domain.ErrInvalidSession
	}
	linkID := *sess.LinkID

	file, err := s.Repository.FindByLinkID(ctx, linkID)
	if err != nil {
		return DownloadResult{}, err
	}
	if file.IsExpired(now) {
		return DownloadResult{}, domain.ErrFileExpired
	}

	// Decrement before verify: every attempt, successful or not, is debited
	// before the gate comparison runs, so an abandoned connection after the
	// server has already answered cannot be used to probe attempt counting.
	limit, err := s.Limits.DecrementAttempts(ctx, linkID, now)
	if err != nil {
		return DownloadResult{}, err
	}

	// GateBox is moved+zeroized by NewGateHash; copy it first since file is
	// only the repository's record, not a throwaway value, and a failed
	// attempt must leave the stored gate material intact for the next try.
	gateHash, err := domain.NewGateHash(append([]byte(nil), file.GateBox...))
	if err != nil {
		return DownloadResult{}, domain.ErrCryptoError
	}
	ok, err := accessHash.CanUnlock(gateHash)
	if err != nil {
		return DownloadResult{}, err
	}
	if !ok {
		if s.Metrics != nil {
			s.Metrics.Inc(CounterAccessVerifyFailed, 1)
		}
		return DownloadResult{}, domain.ErrAccessVerification
	}

	envelope, err := s.Pepper.Unseal(file.SealedEnvelope)
	if err != nil {
		return DownloadResult{}, domain.ErrCryptoError
	}
	salt, err := s.Pepper.Unseal(file.SealedSalt)
	if err != nil {
		zero(envelope)
		return DownloadResult{}, domain.ErrCryptoError
	}

	blob, err := s.Files.Load(ctx, file.BlobPath)
	if err != nil {
		zero(envelope)
		zero(salt)
		return DownloadResult{}, domain.ErrStorageError
	}

	// Burn cascade: the authoritative evidence (the blob) goes first so a
	// crash mid-cascade leaves only an unreachable record for the sweeper.
	_ = s.Files.Delete(ctx, file.BlobPath)
	_ = s.Repository.DeleteByLinkID(ctx, linkID)
	_ = s.Limits.Delete(ctx, linkID)
	_ = s.Sessions.Delete(ctx, sessionID)

	if s.Metrics != nil {
		s.Metrics.Inc(CounterLinksDownloaded, 1)
		s.Metrics.Inc(CounterLinksBurned, 1)
		s.Metrics.Observe(HistogramAttemptsConsumed, int64(file.Specs.RetryCount-limit.RemainingAttempts))
	}

	return DownloadResult{Blob: blob, Envelope: envelope, Salt: salt}, nil
}

func (s *DownloadService) sessionTimeout() time.Duration {
	if s.SessionTimeout <= 0 {
		return defaultSessionTimeout
	}
	return s.SessionTimeout
}

const defaultSessionTimeout = 15 * time.Minute
