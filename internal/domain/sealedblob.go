package domain

import "encoding/binary"

// SealedBlob is the non-secret wire format produced by the pepper service:
//
//	offset 0              : u16 big-endian pepperVersion
//	offset 2              : u16 big-endian nonceLength (>=1)
//	offset 4              : nonce[nonceLength]
//	offset 4+nonceLength  : ciphertext[>=1]
//
// Minimum total length is 6 bytes.
type SealedBlob struct {
	version    uint16
	nonce      []byte
	ciphertext []byte
}

const sealedBlobHeaderLen = 4
const sealedBlobMinLen = 6

// BuildSealedBlob assembles a SealedBlob from its parts, copying nonce and
// ciphertext so the returned value is independent of the caller's slices.
func BuildSealedBlob(version uint16, nonce, ciphertext []byte) (SealedBlob, error) {
	if len(nonce) == 0 || len(ciphertext) == 0 {
		return SealedBlob{}, ErrNullOrEmpty
	}
	n := make([]byte, len(nonce))
	copy(n, nonce)
	c := make([]byte, len(ciphertext))
	copy(c, ciphertext)
	return SealedBlob{version: version, nonce: n, ciphertext: c}, nil
}

// Bytes renders the self-describing wire layout.
func (s SealedBlob) Bytes() []byte {
	out := make([]byte, sealedBlobHeaderLen+len(s.nonce)+len(s.ciphertext))
	binary.BigEndian.PutUint16(out[0:2], s.version)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(s.nonce)))
	copy(out[sealedBlobHeaderLen:], s.nonce)
	copy(out[sealedBlobHeaderLen+len(s.nonce):], s.ciphertext)
	return out
}

// ParseSealedBlob parses the wire layout, failing with ErrFormatError if the
// input is too short or nonceLength is inconsistent with the total length.
func ParseSealedBlob(b []byte) (SealedBlob, error) {
	if len(b) < sealedBlobMinLen {
		return SealedBlob{}, ErrFormatError
	}
	version := binary.BigEndian.Uint16(b[0:2])
	nonceLen := int(binary.BigEndian.Uint16(b[2:4]))
	if nonceLen < 1 {
		return SealedBlob{}, ErrFormatError
	}
	if len(b) <= sealedBlobHeaderLen+nonceLen {
		// must leave at least one byte of ciphertext
		return SealedBlob{}, ErrFormatError
	}
	nonce := make([]byte, nonceLen)
	copy(nonce, b[sealedBlobHeaderLen:sealedBlobHeaderLen+nonceLen])
	ciphertext := make([]byte, len(b)-sealedBlobHeaderLen-nonceLen)
	copy(ciphertext, b[sealedBlobHeaderLen+nonceLen:])
	return SealedBlob{version: version, nonce: nonce, ciphertext: ciphertext}, nil
}

// PepperVersion returns the pepper key version this blob was sealed under.
func (s SealedBlob) PepperVersion() uint16 { return s.version }

// Nonce returns an independent copy of the nonce.
func (s SealedBlob) Nonce() []byte {
	out := make([]byte, len(s.nonce))
	copy(out, s.nonce)
	return out
}

// Ciphertext returns an independent copy of the ciphertext.
func (s SealedBlob) Ciphertext() []byte {
	out := make([]byte, len(s.ciphertext))
	copy(out, s.ciphertext)
	return out
}
