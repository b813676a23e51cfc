package domain

// Hmac is a safe-secret container for an HMAC-SHA256 output: 32..64 bytes,
// aligned to 32.
type Hmac struct{ inner *safeBytes }

var hmacConstraint = sizeConstraint{min: 32, max: 64, alignment: 32}

// NewHmac moves src into a fresh Hmac, validating its size.
func NewHmac(src []byte) (Hmac, error) {
	b, err := newSafeBytes(src, hmacConstraint)
	if err != nil {
		return Hmac{}, err
	}
	return Hmac{inner: b}, nil
}

func (h Hmac) Len() int                    { return h.inner.Len() }
func (h Hmac) At(i int) (byte, error)      { return h.inner.At(i) }
func (h Hmac) Base64() (SafeString, error) { return h.inner.Base64() }
func (h Hmac) Equal(o Hmac) (bool, error)  { return h.inner.Equal(o.inner) }
func (h Hmac) Resolve() ([]byte, error)    { return h.inner.Resolve() }
func (h Hmac) Close() error                { return h.inner.Close() }
