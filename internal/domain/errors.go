// Package domain holds Cinder's core types: identifiers, safe-secret
// containers, the sealed-blob wire format, and the persisted record shapes
// the upload/download state machines operate on. Nothing in this package
// performs I/O.
package domain

import "errors"

// Sentinel errors implementing the error taxonomy of the trust engine.
// Each is surfaced by exactly one layer's error-mapping boundary; the state
// machines never downgrade or swallow them.
var (
	// ErrNullOrEmpty signals a required byte input was absent.
	ErrNullOrEmpty = errors.New("required secret input is empty")
	// ErrSizeError signals a secret fell outside its declared bounds or alignment.
	ErrSizeError = errors.New("secret size out of bounds")
	// ErrFormatError signals a SealedBlob or identifier was malformed.
	ErrFormatError = errors.New("malformed wire format")
	// ErrStateError signals use-after-consume/close on a safe container. It is
	// always a programmer error and is never downgraded to a user-facing code.
	ErrStateError = errors.New("secret container already consumed or closed")
	// ErrSizeMismatch signals a comparison between unequal-length gate material.
	ErrSizeMismatch = errors.New("gate material length mismatch")
	// ErrInvalidIDPrefix signals an identifier carried an unrecognized two-character prefix.
	ErrInvalidIDPrefix = errors.New("invalid id prefix")

	// ErrFileNotFound signals no SecureFile exists for the given id.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileExpired signals expiryDate < now for an otherwise-present SecureFile.
	ErrFileExpired = errors.New("file expired")
	// ErrInvalidLink signals a link identifier is unknown or malformed.
	ErrInvalidLink = errors.New("invalid link")
	// ErrInvalidSession signals a session is missing, expired, or of the wrong mode.
	ErrInvalidSession = errors.New("invalid session")
	// ErrAccessVerification signals the access hash did not unlock the gate hash.
	ErrAccessVerification = errors.New("access verification failed")
	// ErrMaxAttemptsExceeded signals the attempt counter reached zero.
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")
	// ErrTimestampSkew signals a timestamp fell outside the allowed skew window.
	ErrTimestampSkew = errors.New("timestamp skew exceeded")
	// ErrCryptoError signals an RNG, MAC, or seal/unseal failure.
	ErrCryptoError = errors.New("cryptographic operation failed")
	// ErrStorageError signals a blob store or repository I/O failure.
	ErrStorageError = errors.New("storage operation failed")
	// ErrInvalidRequest signals a request-shaped validation failure (e.g. retryCount out of range).
	ErrInvalidRequest = errors.New("invalid request")
)
