package models

import (
	"regexp"
	"time"
)

// PulseUser is a broker credential. The username is unique across both
// the local store and the live broker; the password is write-only and
// kept locally only as a bcrypt hash.
type PulseUser struct {
	Username     string
	PasswordHash string
	Owners       []*User
	CreatedAt    time.Time
}

// OwnedBy reports whether the user with the given email is among the
// pulse user's owners.
func (p *PulseUser) OwnedBy(email string) bool {
	for _, o := range p.Owners {
		if o.Email == email {
			return true
		}
	}
	return false
}

// OwnerEmails returns the emails of the current owners, in load order.
func (p *PulseUser) OwnerEmails() []string {
	emails := make([]string, 0, len(p.Owners))
	for _, o := range p.Owners {
		emails = append(emails, o.Email)
	}
	return emails
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*$`)

// ValidUsername reports whether name starts with an alphabetical
// character and contains only alphanumerics, periods, underscores, and
// hyphens.
func ValidUsername(name string) bool {
	return usernameRe.MatchString(name)
}

// StrongPassword reports whether pw is at least 6 characters long and
// contains at least one letter and one digit.
func StrongPassword(pw string) bool {
	if len(pw) < 6 {
		return false
	}
	var letter, digit bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return letter && digit
}
