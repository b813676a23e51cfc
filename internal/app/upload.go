package app

import (
	"context"
	"fmt"
	"io"

	"github.com/voltzug/cinder/internal/domain"
)

// UploadRequest carries the validated-but-not-yet-processed inputs to the
// upload state machine (C9). Envelope, Salt, and GateHash are plaintext;
// the service zeroizes its copies on every exit path.
type UploadRequest struct {
	Blob        io.Reader
	BlobSize    int64
	Envelope    []byte
	Salt        []byte
	GateHash    []byte
	GateContext []byte // optional, opaque encrypted questions
	ExpiryDate  domain.Timestamp
	RetryCount  int
	UserID      domain.UserID
}

// UploadService orchestrates IDLE -> VALIDATING -> STORING -> SEALING ->
// PERSISTING -> GATE_INIT -> DONE (C9). Any error after STORING triggers a
// best-effort rollback of everything committed so far.
type UploadService struct {
	Files      FileStore
	Repository SecureFileRepository
	Limits     DownloadLimitStore
	Pepper     Pepper
	Clock      Clock
	Metrics    Metrics // optional; nil disables counters
}

// Upload runs the state machine described above and returns the freshly
// minted LinkID on success.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (domain.LinkID, error) {
	defer zero(req.Envelope)
	defer zero(req.Salt)
	defer zero(req.GateHash)

	// VALIDATING
	if err := domain.ValidateRetryCount(req.RetryCount); err != nil {
		return "", err
	}
	if len(req.Envelope) == 0 || len(req.Salt) == 0 {
		return "", domain.ErrNullOrEmpty
	}
	if req.BlobSize <= 0 {
		return "", domain.ErrSizeError
	}
	gateHash, err := domain.NewGateHash(req.GateHash)
	if err != nil {
		return "", err
	}
	gateBox, err := gateHash.Resolve()
	if err != nil {
		return "", fmt.Errorf("resolve gate hash: %w", domain.ErrCryptoError)
	}

	// STORING
	blobPath, err := s.Files.Save(ctx, req.Blob, req.BlobSize)
	if err != nil {
		return "", fmt.Errorf("store blob: %w", domain.ErrStorageError)
	}
	blobCommitted := false
	defer func() {
		if !blobCommitted {
			_ = s.Files.Delete(context.Background(), blobPath)
		}
	}()

	// SEALING
	sealedEnvelope, err := s.Pepper.Seal(req.Envelope)
	if err != nil {
		return "", domain.ErrCryptoError
	}
	sealedSalt, err := s.Pepper.Seal(req.Salt)
	if err != nil {
		return "", domain.ErrCryptoError
	}

	// PERSISTING
	fileID := domain.NewFileID()
	linkID := domain.NewLinkID()
	now := domain.NewTimestamp(s.Clock.Now())
	specs := domain.FileSpecs{ExpiryDate: req.ExpiryDate, RetryCount: req.RetryCount}
	f := domain.SecureFile{
		FileID:            fileID,
		LinkID:            linkID,
		UserID:            req.UserID,
		BlobPath:          blobPath,
		SealedEnvelope:    sealedEnvelope,
		SealedSalt:        sealedSalt,
		Specs:             specs,
		RemainingAttempts: req.RetryCount,
		CreatedAt:         now,
		GateBox:           gateBox,
		GateContext:       req.GateContext,
	}
	if err := s.Repository.Save(ctx, f); err != nil {
		return "", fmt.Errorf("persist secure file: %w", domain.ErrStorageError)
	}
	recordCommitted := false
	defer func() {
		if !recordCommitted {
			_ = s.Repository.DeleteByLinkID(context.Background(), linkID)
		}
	}()

	// GATE_INIT
	if err := s.Limits.Initialize(ctx, linkID, specs, gateBox, req.GateContext); err != nil {
		return "", err
	}

	// DONE
	blobCommitted = true
	recordCommitted = true
	if s.Metrics != nil {
		s.Metrics.Inc(CounterLinksCreated, 1)
		s.Metrics.Observe(HistogramUploadBytes, req.BlobSize)
	}
	return linkID, nil
}

func zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
