package domain

// DownloadLimit is the current attempt-counter/expiry witness for a link,
// maintained by the download-limit store (C7) independently of the
// SecureFile record it refers to by id (the limit record holds a foreign
// reference to the file, never the reverse).
type DownloadLimit struct {
	LinkID            LinkID
	RemainingAttempts int
	ExpiryDate        Timestamp
	LastAttemptAt     *Timestamp
}

// IsExpired reports whether the link has expired as of t, strictly:
// isExpired(t) = t > expiryDate.
func (d DownloadLimit) IsExpired(t Timestamp) bool {
	return t.IsAfter(d.ExpiryDate)
}
