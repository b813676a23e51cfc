package pepper

import (
	"bytes"
	"testing"

	"github.com/voltzug/cinder/internal/domain"
)

func key(b byte) []byte {
	k := make([]byte, KeySize)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestSealUnsealRoundTrip(t *testing.T) {
	svc, err := New(map[uint16][]byte{1: key(0x01)}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plain := []byte("zero-knowledge payload")
	sealed, err := svc.Seal(plain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sealed.PepperVersion() != 1 {
		t.Fatalf("expected version 1, got %d", sealed.PepperVersion())
	}
	got, err := svc.Unseal(sealed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plain)
	}
}

func TestNewRejectsWrongKeyLength(t *testing.T) {
	if _, err := New(map[uint16][]byte{1: key(0x01)[:16]}, 1); err != domain.ErrCryptoError {
		t.Fatalf("expected ErrCryptoError, got %v", err)
	}
}

func TestNewRejectsUnknownActiveVersion(t *testing.T) {
	if _, err := New(map[uint16][]byte{1: key(0x01)}, 2); err != domain.ErrCryptoError {
		t.Fatalf("expected ErrCryptoError, got %v", err)
	}
}

func TestUnsealRejectsUnknownVersion(t *testing.T) {
	svc, _ := New(map[uint16][]byte{1: key(0x01)}, 1)
	sealed, _ := svc.Seal([]byte("payload"))
	other, _ := New(map[uint16][]byte{9: key(0x09)}, 9)
	if _, err := other.Unseal(sealed); err != domain.ErrCryptoError {
		t.Fatalf("expected ErrCryptoError, got %v", err)
	}
}

// Rotation scenario (§8 scenario 5): a blob sealed under v1 stays
// decryptable after v2 becomes active, and new seals are tagged v2. Once v1
// is forgotten, the old blob can no longer be unsealed.
func TestRotationKeepsOldBlobsDecryptableUntilForgotten(t *testing.T) {
	svc, err := New(map[uint16][]byte{1: key(0x01)}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oldBlob, err := svc.Seal([]byte("sealed under v1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Rotate(2, key(0x02)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SetActive(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Unseal(oldBlob); err != nil {
		t.Fatalf("v1 blob should still unseal after rotation: %v", err)
	}

	newBlob, err := svc.Seal([]byte("sealed under v2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newBlob.PepperVersion() != 2 {
		t.Fatalf("expected new seals tagged version 2, got %d", newBlob.PepperVersion())
	}

	svc.Forget(1)
	if _, err := svc.Unseal(oldBlob); err != domain.ErrCryptoError {
		t.Fatalf("expected ErrCryptoError after forgetting v1, got %v", err)
	}
	if got, err := svc.Unseal(newBlob); err != nil || string(got) != "sealed under v2" {
		t.Fatalf("v2 blob should still unseal: got %q err %v", got, err)
	}
}

func TestSetActiveRejectsUnknownVersion(t *testing.T) {
	svc, _ := New(map[uint16][]byte{1: key(0x01)}, 1)
	if err := svc.SetActive(5); err != domain.ErrCryptoError {
		t.Fatalf("expected ErrCryptoError, got %v", err)
	}
}

func TestSealProducesDistinctNoncesAndCiphertexts(t *testing.T) {
	svc, _ := New(map[uint16][]byte{1: key(0x01)}, 1)
	a, err := svc.Seal([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := svc.Seal([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Equal(a.Nonce(), b.Nonce()) {
		t.Fatalf("expected distinct nonces across seals")
	}
	if bytes.Equal(a.Ciphertext(), b.Ciphertext()) {
		t.Fatalf("expected distinct ciphertexts for distinct nonces")
	}
}
