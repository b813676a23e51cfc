package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voltzug/cinder/internal/domain"
)

func validUploadRequest() UploadRequest {
	return UploadRequest{
		Blob:       bytes.NewReader([]byte("ciphertext payload")),
		BlobSize:   int64(len("ciphertext payload")),
		Envelope:   append([]byte(nil), []byte("envelope-plaintext-32-bytes-long")...),
		Salt:       append([]byte(nil), []byte("0123456789abcdef")...),
		GateHash:   append([]byte(nil), bytes.Repeat([]byte{0xAB}, 32)...),
		ExpiryDate: domain.NewTimestamp(time.Unix(2_000_000_000, 0)),
		RetryCount: 5,
	}
}

func newUploadService() (*UploadService, *fakeFileStore, *fakeRepository, *fakeLimits, *fakeMetrics) {
	files := newFakeFileStore()
	repo := newFakeRepository()
	limits := newFakeLimits()
	metrics := newFakeMetrics()
	svc := &UploadService{
		Files:      files,
		Repository: repo,
		Limits:     limits,
		Pepper:     &fakePepper{version: 1},
		Clock:      fixedClock{now: time.Unix(1_000_000_000, 0)},
		Metrics:    metrics,
	}
	return svc, files, repo, limits, metrics
}

func TestUploadSuccessPersistsAllStages(t *testing.T) {
	svc, files, repo, limits, metrics := newUploadService()
	linkID, err := svc.Upload(context.Background(), validUploadRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if linkID == "" {
		t.Fatalf("expected a link id")
	}
	f, ok := repo.byLink[linkID]
	if !ok {
		t.Fatalf("expected record to be persisted")
	}
	if f.RemainingAttempts != 5 {
		t.Fatalf("expected remainingAttempts=5, got %d", f.RemainingAttempts)
	}
	if len(files.blobs) != 1 {
		t.Fatalf("expected exactly one blob committed, got %d", len(files.blobs))
	}
	if files.deleteN != 0 {
		t.Fatalf("expected no rollback deletes on success, got %d", files.deleteN)
	}
	if _, ok := limits.records[linkID]; !ok {
		t.Fatalf("expected download-limit record to be initialized")
	}
	if metrics.counts[CounterLinksCreated] != 1 {
		t.Fatalf("expected %s=1, got %d", CounterLinksCreated, metrics.counts[CounterLinksCreated])
	}
	wantSize := int64(len("ciphertext payload"))
	if obs := metrics.observations[HistogramUploadBytes]; len(obs) != 1 || obs[0] != wantSize {
		t.Fatalf("expected one %s observation of %d, got %+v", HistogramUploadBytes, wantSize, obs)
	}
}

func TestUploadRejectsRetryCountOutOfRange(t *testing.T) {
	svc, files, repo, _, _ := newUploadService()
	req := validUploadRequest()
	req.RetryCount = 0
	if _, err := svc.Upload(context.Background(), req); err != domain.ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if len(files.blobs) != 0 || len(repo.byLink) != 0 {
		t.Fatalf("expected no side effects before VALIDATING completes")
	}
}

func TestUploadRejectsEmptyEnvelopeOrSalt(t *testing.T) {
	svc, _, _, _, _ := newUploadService()
	req := validUploadRequest()
	req.Envelope = nil
	if _, err := svc.Upload(context.Background(), req); err != domain.ErrNullOrEmpty {
		t.Fatalf("expected ErrNullOrEmpty, got %v", err)
	}
}

func TestUploadRejectsMalformedGateHash(t *testing.T) {
	svc, _, _, _, _ := newUploadService()
	req := validUploadRequest()
	req.GateHash = []byte("too-short")
	if _, err := svc.Upload(context.Background(), req); err != domain.ErrSizeError {
		t.Fatalf("expected ErrSizeError, got %v", err)
	}
}

func TestUploadRollsBackBlobWhenSealingFails(t *testing.T) {
	files := newFakeFileStore()
	repo := newFakeRepository()
	limits := newFakeLimits()
	svc := &UploadService{
		Files:      files,
		Repository: repo,
		Limits:     limits,
		Pepper:     &fakePepper{sealErr: errors.New("aead unavailable")},
		Clock:      fixedClock{now: time.Unix(1_000_000_000, 0)},
	}
	if _, err := svc.Upload(context.Background(), validUploadRequest()); err != domain.ErrCryptoError {
		t.Fatalf("expected ErrCryptoError, got %v", err)
	}
	if len(files.blobs) != 0 {
		t.Fatalf("expected blob rollback after sealing failure")
	}
	if len(repo.byLink) != 0 {
		t.Fatalf("expected no persisted record")
	}
}

func TestUploadRollsBackBlobAndRecordWhenGateInitFails(t *testing.T) {
	svc, files, repo, limits, _ := newUploadService()
	limits.initErr = domain.ErrInvalidLink
	if _, err := svc.Upload(context.Background(), validUploadRequest()); err != domain.ErrInvalidLink {
		t.Fatalf("expected ErrInvalidLink, got %v", err)
	}
	if len(files.blobs) != 0 {
		t.Fatalf("expected blob rollback after GATE_INIT failure")
	}
	if len(repo.byLink) != 0 {
		t.Fatalf("expected record rollback after GATE_INIT failure")
	}
}

func TestUploadZeroizesEnvelopeAndSaltOnEveryExit(t *testing.T) {
	svc, _, _, _, _ := newUploadService()
	req := validUploadRequest()
	envelope := req.Envelope
	salt := req.Salt
	if _, err := svc.Upload(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(envelope, make([]byte, len(envelope))) {
		t.Fatalf("expected envelope to be zeroized after upload")
	}
	if !bytes.Equal(salt, make([]byte, len(salt))) {
		t.Fatalf("expected salt to be zeroized after upload")
	}
}
