package domain

import "testing"

func TestSealedBlobBuildParseRoundTrip(t *testing.T) {
	nonce := []byte("abcdefgh")
	ciphertext := []byte("ciphertext-bytes")
	blob, err := BuildSealedBlob(2, nonce, ciphertext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := ParseSealedBlob(blob.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.PepperVersion() != 2 {
		t.Fatalf("version mismatch: %d", parsed.PepperVersion())
	}
	if string(parsed.Nonce()) != string(nonce) {
		t.Fatalf("nonce mismatch")
	}
	if string(parsed.Ciphertext()) != string(ciphertext) {
		t.Fatalf("ciphertext mismatch")
	}
}

func TestSealedBlobAccessorsReturnIndependentCopies(t *testing.T) {
	blob, _ := BuildSealedBlob(1, []byte("nonce1234"), []byte("ct"))
	n := blob.Nonce()
	n[0] = 'Z'
	if string(blob.Nonce()) == string(n) {
		t.Fatalf("Nonce() must return an independent copy")
	}
}

func TestSealedBlobParseRejectsShortInput(t *testing.T) {
	cases := [][]byte{
		nil,
		{0, 1},
		{0, 1, 0, 1, 0}, // 5 bytes < min 6
	}
	for _, c := range cases {
		if _, err := ParseSealedBlob(c); err != ErrFormatError {
			t.Errorf("input %v: expected ErrFormatError, got %v", c, err)
		}
	}
}

func TestSealedBlobParseRejectsInconsistentNonceLength(t *testing.T) {
	// header claims a nonce length longer than the remaining bytes allow.
	b := []byte{0, 1, 0, 10, 1, 2, 3}
	if _, err := ParseSealedBlob(b); err != ErrFormatError {
		t.Fatalf("expected ErrFormatError, got %v", err)
	}
}

func TestSealedBlobBuildRejectsEmptyParts(t *testing.T) {
	if _, err := BuildSealedBlob(1, nil, []byte("ct")); err != ErrNullOrEmpty {
		t.Errorf("expected ErrNullOrEmpty for empty nonce, got %v", err)
	}
	if _, err := BuildSealedBlob(1, []byte("n"), nil); err != ErrNullOrEmpty {
		t.Errorf("expected ErrNullOrEmpty for empty ciphertext, got %v", err)
	}
}
