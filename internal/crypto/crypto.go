// Package crypto implements Cinder's crypto provider (spec.md §4.2): random
// byte generation, HMAC-SHA256 compute/verify with guaranteed secret
// consumption, and a constant-time byte comparison (AccessHash.CanUnlock
// does its own comparison inside internal/domain). No MAC state is shared across calls (design notes §9 "Global
// MAC instance"): every call allocates its own hash.Hash, so Provider is
// safe for concurrent use without its own locking.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"github.com/voltzug/cinder/internal/domain"
)

const (
	minRandomBytes = 1
	maxRandomBytes = 1 << 20 // 1,048,576
	hmacKeyLen     = 32
)

// RandomBytes returns n cryptographically secure random bytes. n must
// satisfy 1 <= n <= 1,048,576.
func RandomBytes(n int) ([]byte, error) {
	if n < minRandomBytes || n > maxRandomBytes {
		return nil, domain.ErrSizeError
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, domain.ErrCryptoError
	}
	return b, nil
}

// Provider is the stateless crypto provider. Its zero value is ready to use.
type Provider struct{}

// NewProvider returns a Provider.
func NewProvider() Provider { return Provider{} }

// HMAC computes HMAC-SHA256(secret, data). secret must be exactly 32 bytes.
// On success secret is consumed (resolved and its plaintext key zeroized
// once hashing completes); on failure secret is closed and the internal MAC
// state is simply discarded (a fresh hash.Hash is allocated on every call,
// so there is no shared state to reset).
func (Provider) HMAC(secret domain.SessionSecret, data []byte) (domain.Hmac, error) {
	if secret.Len() != hmacKeyLen {
		_ = secret.Close()
		return domain.Hmac{}, domain.ErrCryptoError
	}
	key, err := secret.Resolve()
	if err != nil {
		return domain.Hmac{}, domain.ErrCryptoError
	}
	defer zero(key)
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	out, err := domain.NewHmac(mac.Sum(nil))
	if err != nil {
		return domain.Hmac{}, domain.ErrCryptoError
	}
	return out, nil
}

// VerifyHMAC computes actual = HMAC(secret, data) and compares it against
// expected in constant time. Both secret and expected are consumed
// regardless of outcome (§5 "Composite operations that take multiple
// secrets ... consume all of them on every return").
func (p Provider) VerifyHMAC(secret domain.SessionSecret, data []byte, expected domain.Hmac) (bool, error) {
	defer func() { _ = expected.Close() }()
	actual, err := p.HMAC(secret, data)
	if err != nil {
		return false, err
	}
	defer func() { _ = actual.Close() }()
	ok, err := expected.Equal(actual)
	if err != nil {
		return false, domain.ErrCryptoError
	}
	return ok, nil
}

// ConstantTimeCompare reports whether a and b hold identical bytes. It is
// branch-free in the byte contents: for equal lengths runtime depends only
// on len(a) and never on where a mismatching byte sits. Inputs of unequal
// length return false at once without comparing any bytes.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

func zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
