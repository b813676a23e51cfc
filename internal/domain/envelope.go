package domain

// Envelope is an unconstrained safe-secret container carrying the client's
// encryption envelope (file key + nonce, sealed client-side). It has no size
// constraint beyond non-empty.
type Envelope struct{ inner *safeBytes }

var envelopeConstraint = sizeConstraint{}

// NewEnvelope moves src into a fresh Envelope.
func NewEnvelope(src []byte) (Envelope, error) {
	b, err := newSafeBytes(src, envelopeConstraint)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{inner: b}, nil
}

func (e Envelope) Len() int                    { return e.inner.Len() }
func (e Envelope) At(i int) (byte, error)      { return e.inner.At(i) }
func (e Envelope) Base64() (SafeString, error) { return e.inner.Base64() }
func (e Envelope) Equal(o Envelope) (bool, error) {
	return e.inner.Equal(o.inner)
}
func (e Envelope) Resolve() ([]byte, error) { return e.inner.Resolve() }
func (e Envelope) Close() error             { return e.inner.Close() }
