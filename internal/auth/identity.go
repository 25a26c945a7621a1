package auth

import "context"

// IdentityProvider is the external account system.
//
// Every method returns a *failure.Error built with NewAuthError on rejection,
// so callers can show the catalog message for its code.
type IdentityProvider interface {
	// SignUp creates an email/password account. The new account is unverified.
	SignUp(ctx context.Context, email, password string) (*Identity, error)

	// SetDisplayName updates the account's display name.
	SetDisplayName(ctx context.Context, id *Identity, displayName string) error

	// SendVerificationEmail sends the email verification link.
	SendVerificationEmail(ctx context.Context, id *Identity) error

	// SignIn checks an email/password pair.
	SignIn(ctx context.Context, email, password string) (*Identity, error)

	// SignInWithGoogle signs in with a Google ID token, creating the account
	// on first use.
	SignInWithGoogle(ctx context.Context, googleIDToken string) (*Identity, error)

	// Lookup re-reads the account, including its verification state.
	Lookup(ctx context.Context, id *Identity) (*Identity, error)
}
