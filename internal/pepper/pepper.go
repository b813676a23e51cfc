// Package pepper implements the versioned AEAD seal/unseal service that
// protects server-resident metadata (spec.md §4.3): the sealed envelope and
// salt stored on every SecureFile. Keys are provisioned out of band (loaded
// by internal/config at startup from hex-encoded configuration) and never
// derived from anything the client sends.
package pepper

import (
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/voltzug/cinder/internal/crypto"
	"github.com/voltzug/cinder/internal/domain"
)

// KeySize is the required length, in bytes, of every pepper key.
const KeySize = chacha20poly1305.KeySize

// Service holds a version->key map plus a designated active version. The
// map is read-mostly; rotation swaps it under a lock so concurrent
// seal/unseal calls never observe a torn state.
type Service struct {
	mu     sync.RWMutex
	keys   map[uint16][]byte
	active uint16
}

// New constructs a Service from a version->32-byte-key map and an initial
// active version, which must already be present in keys.
func New(keys map[uint16][]byte, active uint16) (*Service, error) {
	if len(keys) == 0 {
		return nil, domain.ErrCryptoError
	}
	cp := make(map[uint16][]byte, len(keys))
	for v, k := range keys {
		if len(k) != KeySize {
			return nil, domain.ErrCryptoError
		}
		kc := make([]byte, len(k))
		copy(kc, k)
		cp[v] = kc
	}
	if _, ok := cp[active]; !ok {
		return nil, domain.ErrCryptoError
	}
	return &Service{keys: cp, active: active}, nil
}

// Seal picks the active version, generates a fresh nonce, and returns the
// self-describing SealedBlob wire layout.
func (s *Service) Seal(plain []byte) (domain.SealedBlob, error) {
	s.mu.RLock()
	key, ok := s.keys[s.active]
	active := s.active
	s.mu.RUnlock()
	if !ok {
		return domain.SealedBlob{}, domain.ErrCryptoError
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return domain.SealedBlob{}, domain.ErrCryptoError
	}
	nonce, err := crypto.RandomBytes(aead.NonceSize())
	if err != nil {
		return domain.SealedBlob{}, domain.ErrCryptoError
	}
	ciphertext := aead.Seal(nil, nonce, plain, nil)
	return domain.BuildSealedBlob(active, nonce, ciphertext)
}

// Unseal parses the wire layout, selects the key by the blob's carried
// pepperVersion (unknown version => ErrCryptoError), and verifies+decrypts.
func (s *Service) Unseal(sealed domain.SealedBlob) ([]byte, error) {
	s.mu.RLock()
	key, ok := s.keys[sealed.PepperVersion()]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrCryptoError
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, domain.ErrCryptoError
	}
	plain, err := aead.Open(nil, sealed.Nonce(), sealed.Ciphertext(), nil)
	if err != nil {
		return nil, domain.ErrCryptoError
	}
	return plain, nil
}

// Rotate adds or replaces the key held for version without changing the
// active pointer. Historical blobs sealed under other versions remain
// decryptable as long as their version stays in the map.
func (s *Service) Rotate(version uint16, key []byte) error {
	if len(key) != KeySize {
		return domain.ErrCryptoError
	}
	kc := make([]byte, len(key))
	copy(kc, key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[version] = kc
	return nil
}

// SetActive flips the active version used by future Seal calls. version
// must already be loaded via New or Rotate.
func (s *Service) SetActive(version uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[version]; !ok {
		return domain.ErrCryptoError
	}
	s.active = version
	return nil
}

// Forget removes a pepper version. Blobs sealed under it can no longer be
// unsealed; used operationally to finish a rotation.
func (s *Service) Forget(version uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, version)
}
