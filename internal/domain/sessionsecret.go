package domain

// SessionSecret is a safe-secret container for an HMAC key scoped to a
// single download session: any positive length that is a multiple of 4.
type SessionSecret struct{ inner *safeBytes }

var sessionSecretConstraint = sizeConstraint{min: 4, max: 0, alignment: 4}

// NewSessionSecret moves src into a fresh SessionSecret, validating its size.
func NewSessionSecret(src []byte) (SessionSecret, error) {
	b, err := newSafeBytes(src, sessionSecretConstraint)
	if err != nil {
		return SessionSecret{}, err
	}
	return SessionSecret{inner: b}, nil
}

func (s SessionSecret) Len() int                    { return s.inner.Len() }
func (s SessionSecret) At(i int) (byte, error)      { return s.inner.At(i) }
func (s SessionSecret) Base64() (SafeString, error) { return s.inner.Base64() }
func (s SessionSecret) Equal(o SessionSecret) (bool, error) {
	return s.inner.Equal(o.inner)
}
func (s SessionSecret) Resolve() ([]byte, error) { return s.inner.Resolve() }
func (s SessionSecret) Close() error             { return s.inner.Close() }
