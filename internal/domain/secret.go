package domain

import (
	"crypto/subtle"
	"encoding/base64"
)

// containerState tracks the lifecycle of a safe-secret container: live until
// resolved or closed exactly once, then permanently terminal.
type containerState uint8

const (
	stateLive containerState = iota
	stateConsumed
	stateClosed
)

// sizeConstraint describes the accepted length range and alignment for a
// sized secret container. A zero min/max disables that bound; a zero
// alignment disables the multiple-of check.
type sizeConstraint struct {
	min       int
	max       int
	alignment int
}

func (c sizeConstraint) check(n int) error {
	if c.min > 0 && n < c.min {
		return ErrSizeError
	}
	if c.max > 0 && n > c.max {
		return ErrSizeError
	}
	if c.alignment > 0 && n%c.alignment != 0 {
		return ErrSizeError
	}
	return nil
}

// safeBytes is the shared implementation backing every sized secret
// container (§3 "Safe-secret family", §4.1). On construction the source
// buffer is moved: its contents are copied in and the caller's buffer is
// zeroized. The container exposes read-only access until it is consumed
// exactly once via resolve() or destroyed via close(); after either, any
// further read or consume fails with ErrStateError.
type safeBytes struct {
	b     []byte
	state containerState
}

// newSafeBytes copies src into a fresh container, validates it against c,
// and zeroizes src regardless of outcome.
func newSafeBytes(src []byte, c sizeConstraint) (*safeBytes, error) {
	defer zero(src)
	if len(src) == 0 {
		return nil, ErrNullOrEmpty
	}
	if err := c.check(len(src)); err != nil {
		return nil, err
	}
	b := make([]byte, len(src))
	copy(b, src)
	return &safeBytes{b: b}, nil
}

// zero overwrites p with 0 bytes in place.
func zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}

// zeroChars overwrites the backing bytes of a string-typed secret with 'x'.
// Go strings are immutable, so this only works on a []byte obtained via
// unsafe or, as here, on the caller's mutable source slice before it is
// interned into a string.
func zeroChars(p []byte) {
	for i := range p {
		p[i] = 'x'
	}
}

func (s *safeBytes) Len() int { return len(s.b) }

// At returns the byte at index i. It fails with ErrStateError once the
// container has been resolved or closed.
func (s *safeBytes) At(i int) (byte, error) {
	if s.state != stateLive {
		return 0, ErrStateError
	}
	if i < 0 || i >= len(s.b) {
		return 0, ErrSizeError
	}
	return s.b[i], nil
}

// Base64 encodes the live contents as a SafeString.
func (s *safeBytes) Base64() (SafeString, error) {
	if s.state != stateLive {
		return "", ErrStateError
	}
	return SafeString(base64.StdEncoding.EncodeToString(s.b)), nil
}

// Equal performs a length-independent constant-time comparison. Differing
// lengths compare unequal without a length-dependent branch on the byte
// contents themselves.
func (s *safeBytes) Equal(other *safeBytes) (bool, error) {
	if s.state != stateLive || other.state != stateLive {
		return false, ErrStateError
	}
	if len(s.b) != len(other.b) {
		return false, nil
	}
	return subtle.ConstantTimeCompare(s.b, other.b) == 1, nil
}

// Resolve transfers ownership of the inner bytes to the caller, marking the
// container consumed. It may only be called once.
func (s *safeBytes) Resolve() ([]byte, error) {
	if s.state != stateLive {
		return nil, ErrStateError
	}
	s.state = stateConsumed
	out := s.b
	s.b = nil
	return out, nil
}

// Close idempotently zeroizes any live contents and marks the container
// closed. It is always safe to call, including after a successful Resolve,
// so that callers can unconditionally `defer secret.Close()`.
func (s *safeBytes) Close() error {
	if s.state == stateLive {
		zero(s.b)
	}
	s.b = nil
	s.state = stateClosed
	return nil
}

// SafeString is the character-typed analogue of safeBytes for string-shaped
// secrets (e.g. a base64 rendering). It carries no size constraint of its
// own; sized secrets produce one via Base64().
type SafeString string

// NewSafeStringFromString builds a SafeString directly from an immutable Go
// string.
//
// Deprecated: the underlying bytes of a Go string cannot be reliably erased,
// so this constructor cannot provide the zeroization guarantee every other
// safe container gives. Accept it only at the extreme boundary (e.g. a CLI
// flag or stdin read) and convert immediately to a byte-backed container.
func NewSafeStringFromString(s string) SafeString {
	return SafeString(s)
}

// NewSafeStringFromBytes builds a SafeString from src, zeroizing src with
// the character pattern 'x' once the string has been interned.
func NewSafeStringFromBytes(src []byte) SafeString {
	defer zeroChars(src)
	return SafeString(string(src))
}

// String returns the raw string value.
func (s SafeString) String() string { return string(s) }
