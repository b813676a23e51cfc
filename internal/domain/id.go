// Package domain id.go contains functions to generate, parse, and validate
// the opaque, two-character-prefixed identifiers used throughout Cinder:
// session ("SN"), link ("LK"), file ("FL"), and owner ("US").
package domain

import "github.com/google/uuid"

// Prefix is the two-character type witness carried by every identifier's
// textual form: "<prefix><value>".
type Prefix string

const (
	PrefixSession Prefix = "SN"
	PrefixLink    Prefix = "LK"
	PrefixFile    Prefix = "FL"
	PrefixUser    Prefix = "US"
)

func (p Prefix) valid() bool {
	switch p {
	case PrefixSession, PrefixLink, PrefixFile, PrefixUser:
		return true
	default:
		return false
	}
}

// newValue generates a UUID-shaped random value for use as the body of an identifier.
func newValue() string {
	return uuid.New().String()
}

// splitID splits a textual identifier into its prefix and value, validating
// that the prefix is one of the recognized kinds before any further parsing
// is attempted (spec.md §9(c): constructing an unknown prefix is rejected
// before any state is touched, rather than reachable-but-always-failing).
func splitID(s string) (Prefix, string, error) {
	if len(s) < 2 {
		return "", "", ErrInvalidIDPrefix
	}
	p := Prefix(s[:2])
	if !p.valid() {
		return "", "", ErrInvalidIDPrefix
	}
	return p, s[2:], nil
}

// SessionID is the opaque identifier of a Session, textual form "SN<value>".
type SessionID string

// NewSessionID generates a fresh SessionID.
func NewSessionID() SessionID { return SessionID(newValue()) }

// ParseSessionID parses s, requiring the "SN" prefix.
func ParseSessionID(s string) (SessionID, error) {
	p, v, err := splitID(s)
	if err != nil {
		return "", err
	}
	if p != PrefixSession {
		return "", ErrInvalidIDPrefix
	}
	return SessionID(v), nil
}

// String renders the textual form "SN<value>".
func (id SessionID) String() string { return string(PrefixSession) + string(id) }

// LinkID is the opaque identifier of an access link, textual form "LK<value>".
type LinkID string

// NewLinkID generates a fresh LinkID.
func NewLinkID() LinkID { return LinkID(newValue()) }

// ParseLinkID parses s, requiring the "LK" prefix.
func ParseLinkID(s string) (LinkID, error) {
	p, v, err := splitID(s)
	if err != nil {
		return "", err
	}
	if p != PrefixLink {
		return "", ErrInvalidIDPrefix
	}
	if v == "" {
		return "", ErrFormatError
	}
	return LinkID(v), nil
}

// String renders the textual form "LK<value>".
func (id LinkID) String() string { return string(PrefixLink) + string(id) }

// FileID is the opaque identifier of a SecureFile, textual form "FL<value>".
type FileID string

// NewFileID generates a fresh FileID.
func NewFileID() FileID { return FileID(newValue()) }

// ParseFileID parses s, requiring the "FL" prefix.
func ParseFileID(s string) (FileID, error) {
	p, v, err := splitID(s)
	if err != nil {
		return "", err
	}
	if p != PrefixFile {
		return "", ErrInvalidIDPrefix
	}
	return FileID(v), nil
}

// String renders the textual form "FL<value>".
func (id FileID) String() string { return string(PrefixFile) + string(id) }

// UserID is the opaque owner tag, textual form "US<value>".
type UserID string

// NewUserID generates a fresh UserID.
func NewUserID() UserID { return UserID(newValue()) }

// ParseUserID parses s, requiring the "US" prefix.
func ParseUserID(s string) (UserID, error) {
	p, v, err := splitID(s)
	if err != nil {
		return "", err
	}
	if p != PrefixUser {
		return "", ErrInvalidIDPrefix
	}
	return UserID(v), nil
}

// String renders the textual form "US<value>".
func (id UserID) String() string { return string(PrefixUser) + string(id) }
