// Package user stores the explorer profile document written at sign-up.
//
// # PII Considerations
//
// The profile holds the fields the sign-up form collects:
//   - Username and FullName: display only
//   - DateOfBirth: free-form text as entered, never parsed
//   - Email: copied from the identity provider at creation time
//
// Passwords and provider tokens are never stored here; they stay with the
// identity provider.
package user

import (
	"strings"
	"time"
)

// DefaultUsername is used when a federated sign-in carries no usable email.
const DefaultUsername = "user"

// Profile is the profile document of one account.
type Profile struct {
	// UserID is the identity provider's account id.
	UserID      string    `json:"-"`
	Username    string    `json:"username"`
	FullName    string    `json:"fullName"`
	DateOfBirth string    `json:"dateOfBirth"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewProfile holds the fields needed to create a profile.
type NewProfile struct {
	Username    string
	FullName    string
	DateOfBirth string
	Email       string
}

// UsernameFromEmail derives a username from the local part of an email address.
func UsernameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return DefaultUsername
	}
	return local
}

func copyProfile(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
