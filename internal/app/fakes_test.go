package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/voltzug/cinder/internal/domain"
)

// fixedClock implements Clock returning a fixed instant.
type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

// fakeFileStore is an in-memory FileStore.
type fakeFileStore struct {
	blobs    map[domain.PathReference][]byte
	seq      int
	saveErr  error
	loadErr  error
	deleteN  int
	deletion []domain.PathReference
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{blobs: map[domain.PathReference][]byte{}}
}

func (f *fakeFileStore) Save(_ context.Context, r io.Reader, size int64) (domain.PathReference, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	b, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return "", err
	}
	f.seq++
	ref := domain.PathReference(fmt.Sprintf("blob-%d", f.seq))
	f.blobs[ref] = b
	return ref, nil
}

func (f *fakeFileStore) Load(_ context.Context, ref domain.PathReference) (io.ReadCloser, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	b, ok := f.blobs[ref]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeFileStore) Delete(_ context.Context, ref domain.PathReference) error {
	f.deleteN++
	f.deletion = append(f.deletion, ref)
	delete(f.blobs, ref)
	return nil
}

// fakeRepository is an in-memory SecureFileRepository.
type fakeRepository struct {
	byLink  map[domain.LinkID]domain.SecureFile
	saveErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byLink: map[domain.LinkID]domain.SecureFile{}}
}

func (r *fakeRepository) Save(_ context.Context, f domain.SecureFile) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.byLink[f.LinkID] = f
	return nil
}

func (r *fakeRepository) FindByLinkID(_ context.Context, linkID domain.LinkID) (domain.SecureFile, error) {
	f, ok := r.byLink[linkID]
	if !ok {
		return domain.SecureFile{}, domain.ErrFileNotFound
	}
	return f, nil
}

func (r *fakeRepository) DeleteByID(_ context.Context, fileID domain.FileID) error {
	for k, v := range r.byLink {
		if v.FileID == fileID {
			delete(r.byLink, k)
		}
	}
	return nil
}

func (r *fakeRepository) DeleteByLinkID(_ context.Context, linkID domain.LinkID) error {
	delete(r.byLink, linkID)
	return nil
}

func (r *fakeRepository) FindExpiredBefore(_ context.Context, t domain.Timestamp) ([]domain.SecureFile, error) {
	var out []domain.SecureFile
	for _, v := range r.byLink {
		if v.IsExpired(t) {
			out = append(out, v)
		}
	}
	return out, nil
}

// fakeLimits is an in-memory DownloadLimitStore.
type fakeLimits struct {
	records    map[domain.LinkID]domain.DownloadLimit
	initErr    error
	decrements int
}

func newFakeLimits() *fakeLimits {
	return &fakeLimits{records: map[domain.LinkID]domain.DownloadLimit{}}
}

func (l *fakeLimits) Initialize(_ context.Context, linkID domain.LinkID, specs domain.FileSpecs, gateBox, gateContext []byte) error {
	if l.initErr != nil {
		return l.initErr
	}
	l.records[linkID] = domain.DownloadLimit{
		LinkID:            linkID,
		RemainingAttempts: specs.RetryCount,
		ExpiryDate:        specs.ExpiryDate,
	}
	return nil
}

func (l *fakeLimits) Get(_ context.Context, linkID domain.LinkID) (domain.DownloadLimit, error) {
	d, ok := l.records[linkID]
	if !ok {
		return domain.DownloadLimit{}, domain.ErrInvalidLink
	}
	return d, nil
}

func (l *fakeLimits) DecrementAttempts(_ context.Context, linkID domain.LinkID, now domain.Timestamp) (domain.DownloadLimit, error) {
	l.decrements++
	d, ok := l.records[linkID]
	if !ok || d.RemainingAttempts <= 0 {
		return domain.DownloadLimit{}, domain.ErrMaxAttemptsExceeded
	}
	d.RemainingAttempts--
	d.LastAttemptAt = &now
	l.records[linkID] = d
	return d, nil
}

func (l *fakeLimits) Delete(_ context.Context, linkID domain.LinkID) error {
	delete(l.records, linkID)
	return nil
}

// fakeSessions is an in-memory SessionCache.
type fakeSessions struct {
	byID map[domain.SessionID]domain.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: map[domain.SessionID]domain.Session{}}
}

func (s *fakeSessions) Save(_ context.Context, sess domain.Session) error {
	s.byID[sess.ID] = sess
	return nil
}

func (s *fakeSessions) Get(_ context.Context, id domain.SessionID) (domain.Session, error) {
	sess, ok := s.byID[id]
	if !ok {
		return domain.Session{}, domain.ErrInvalidSession
	}
	return sess, nil
}

func (s *fakeSessions) Delete(_ context.Context, id domain.SessionID) error {
	delete(s.byID, id)
	return nil
}

// fakePepper is an identity "seal" that still exercises the SealedBlob wire
// layout, so tests can assert on PepperVersion without real AEAD overhead.
type fakePepper struct {
	version  uint16
	sealErr  error
	unsealFn func(domain.SealedBlob) ([]byte, error)
}

func (p *fakePepper) Seal(plain []byte) (domain.SealedBlob, error) {
	if p.sealErr != nil {
		return domain.SealedBlob{}, p.sealErr
	}
	return domain.BuildSealedBlob(p.version, []byte("nonce12"), append([]byte(nil), plain...))
}

func (p *fakePepper) Unseal(sealed domain.SealedBlob) ([]byte, error) {
	if p.unsealFn != nil {
		return p.unsealFn(sealed)
	}
	return sealed.Ciphertext(), nil
}

// fakeMetrics records counter increments and histogram observations.
type fakeMetrics struct {
	counts       map[string]int64
	observations map[string][]int64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counts: map[string]int64{}, observations: map[string][]int64{}}
}

func (m *fakeMetrics) Inc(name string, delta int64) { m.counts[name] += delta }

func (m *fakeMetrics) Observe(name string, value int64) {
	m.observations[name] = append(m.observations[name], value)
}
