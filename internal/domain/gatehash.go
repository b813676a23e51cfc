package domain

// GateHash is a safe-secret container for the server-stored gate answer
// hash: 20..64 bytes, aligned to 4.
type GateHash struct{ inner *safeBytes }

var gateHashConstraint = sizeConstraint{min: 20, max: 64, alignment: 4}

// NewGateHash moves src into a fresh GateHash, validating its size.
func NewGateHash(src []byte) (GateHash, error) {
	b, err := newSafeBytes(src, gateHashConstraint)
	if err != nil {
		return GateHash{}, err
	}
	return GateHash{inner: b}, nil
}

func (g GateHash) Len() int                    { return g.inner.Len() }
func (g GateHash) At(i int) (byte, error)      { return g.inner.At(i) }
func (g GateHash) Base64() (SafeString, error) { return g.inner.Base64() }
func (g GateHash) Equal(o GateHash) (bool, error) {
	return g.inner.Equal(o.inner)
}
func (g GateHash) Resolve() ([]byte, error) { return g.inner.Resolve() }
func (g GateHash) Close() error             { return g.inner.Close() }

// AccessHash is a safe-secret container for a downloader-submitted gate
// answer hash. It carries the same size constraint as GateHash plus a
// constant-time unlock comparison.
type AccessHash struct{ inner *safeBytes }

// NewAccessHash moves src into a fresh AccessHash, validating its size.
func NewAccessHash(src []byte) (AccessHash, error) {
	b, err := newSafeBytes(src, gateHashConstraint)
	if err != nil {
		return AccessHash{}, err
	}
	return AccessHash{inner: b}, nil
}

func (a AccessHash) Len() int                    { return a.inner.Len() }
func (a AccessHash) At(i int) (byte, error)      { return a.inner.At(i) }
func (a AccessHash) Base64() (SafeString, error) { return a.inner.Base64() }
func (a AccessHash) Resolve() ([]byte, error)    { return a.inner.Resolve() }
func (a AccessHash) Close() error                { return a.inner.Close() }

// CanUnlock reports whether a unlocks gate, comparing the two hashes in
// constant time. Unequal lengths are reported as ErrSizeMismatch rather than
// silently compared false, per §6: "mismatch is reported, not silently
// false."
func (a AccessHash) CanUnlock(gate GateHash) (bool, error) {
	if a.inner.state != stateLive || gate.inner.state != stateLive {
		return false, ErrStateError
	}
	if a.inner.Len() != gate.inner.Len() {
		return false, ErrSizeMismatch
	}
	return a.inner.Equal(gate.inner)
}
