package domain

// Salt is a safe-secret container for a key-derivation salt: 16..64 bytes,
// aligned to 8.
type Salt struct{ inner *safeBytes }

var saltConstraint = sizeConstraint{min: 16, max: 64, alignment: 8}

// NewSalt moves src into a fresh Salt, validating its size.
func NewSalt(src []byte) (Salt, error) {
	b, err := newSafeBytes(src, saltConstraint)
	if err != nil {
		return Salt{}, err
	}
	return Salt{inner: b}, nil
}

func (s Salt) Len() int                     { return s.inner.Len() }
func (s Salt) At(i int) (byte, error)       { return s.inner.At(i) }
func (s Salt) Base64() (SafeString, error)  { return s.inner.Base64() }
func (s Salt) Equal(o Salt) (bool, error)   { return s.inner.Equal(o.inner) }
func (s Salt) Resolve() ([]byte, error)     { return s.inner.Resolve() }
func (s Salt) Close() error                 { return s.inner.Close() }
