package domain

import "fmt"

// Mode distinguishes why a Session was created.
type Mode uint8

const (
	ModeUpload Mode = iota
	ModeDownload
)

func (m Mode) String() string {
	switch m {
	case ModeUpload:
		return "upload"
	case ModeDownload:
		return "download"
	default:
		return "unknown"
	}
}

// Session is a short-lived handshake record. SessionSecret is optional: the
// download flow's challenge session does not carry one today, but the field
// is retained for handshake variants that do.
type Session struct {
	ID            SessionID
	SessionSecret *SessionSecret
	LinkID        *LinkID
	Mode          Mode
	CreatedAt     Timestamp
	ExpiresAt     Timestamp
}

// IsExpired reports whether the session has expired as of now.
func (s Session) IsExpired(now Timestamp) bool {
	return now.IsAfter(s.ExpiresAt)
}

// String renders a debug form that never includes the session secret's
// bytes, per §3: "Debug rendering must mask the sessionSecret."
func (s Session) String() string {
	secret := "<nil>"
	if s.SessionSecret != nil {
		secret = "<masked>"
	}
	link := "<nil>"
	if s.LinkID != nil {
		link = s.LinkID.String()
	}
	return fmt.Sprintf("Session{ID: %s, SessionSecret: %s, LinkID: %s, Mode: %s, ExpiresAt: %v}",
		s.ID.String(), secret, link, s.Mode, s.ExpiresAt.Time())
}
