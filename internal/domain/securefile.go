package domain

// SecureFile is the persisted record produced by a successful upload and
// consumed by exactly one successful download or by the expiry sweeper.
//
// Lifecycle: created by the upload use case after STORING/SEALING/PERSISTING
// succeed; never mutated except RemainingAttempts (atomic decrement, owned
// by the download-limit store) and the GateBox/GateContext pair on
// re-initialization; destroyed on successful delivery (burn) or on expiry.
type SecureFile struct {
	FileID            FileID
	LinkID            LinkID
	UserID            UserID
	BlobPath          PathReference
	SealedEnvelope    SealedBlob
	SealedSalt        SealedBlob
	Specs             FileSpecs
	RemainingAttempts int
	CreatedAt         Timestamp
	// GateBox holds the opaque bytes a use case interprets to reconstruct a
	// GateHash; GateContext holds optional opaque bytes (e.g. encrypted
	// challenge questions) passed through to the downloader untouched.
	GateBox     []byte
	GateContext []byte
}

// IsExpired reports whether the record's expiry has passed as of now.
// §3: "isExpiryDate >= createdAt is not enforced" — an immediately-expired
// record is legal and IsExpired simply compares against now.
func (f SecureFile) IsExpired(now Timestamp) bool {
	return now.IsAfter(f.Specs.ExpiryDate)
}
