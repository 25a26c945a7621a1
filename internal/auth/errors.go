package auth

import (
	"errors"

	"github.com/vietnamexplorer/explorer/internal/failure"
)

// Provider-independent auth error codes.
const (
	CodeEmailAlreadyInUse   = "email-already-in-use"
	CodeInvalidEmail        = "invalid-email"
	CodeOperationNotAllowed = "operation-not-allowed"
	CodeWeakPassword        = "weak-password"
	CodeUserDisabled        = "user-disabled"
	CodeUserNotFound        = "user-not-found"
	CodeWrongPassword       = "wrong-password"
	CodeInvalidCredential   = "invalid-credential"
	CodeTooManyRequests     = "too-many-requests"
	CodeEmailNotVerified    = "email-not-verified"
)

// User-facing messages.
const (
	MessageAuthFailed         = "Authentication failed. Please try again."
	MessageEmailNotVerified   = "Please verify your email before signing in. Check your inbox for the verification link."
	MessageVerificationFailed = "Failed to send verification email. Please try again."
	MessageSignOutFailed      = "Failed to sign out. Please try again."
)

var catalog = map[string]string{
	CodeEmailAlreadyInUse:   "This email is already registered. Please sign in instead.",
	CodeInvalidEmail:        "Invalid email address format.",
	CodeOperationNotAllowed: "Email/password accounts are not enabled. Please contact support.",
	CodeWeakPassword:        "Password is too weak. Please use at least 6 characters.",
	CodeUserDisabled:        "This account has been disabled. Please contact support.",
	CodeUserNotFound:        "No account found with this email. Please sign up first.",
	CodeWrongPassword:       "Incorrect password. Please try again.",
	CodeInvalidCredential:   "Invalid email or password. Please check your credentials.",
	CodeTooManyRequests:     "Too many failed attempts. Please try again later.",
	CodeEmailNotVerified:    MessageEmailNotVerified,
}

// Predefined session errors.
var (
	ErrEmailNotVerified = errors.New("email not verified")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionRevoked   = errors.New("session revoked")
)

// MessageFor returns the user-facing message for an auth error code.
func MessageFor(code string) string {
	if msg, ok := catalog[code]; ok {
		return msg
	}
	return MessageAuthFailed
}

// NewAuthError builds an identity failure carrying the catalog message for code.
func NewAuthError(provider, code string) *failure.Error {
	return failure.Auth(provider, code, MessageFor(code))
}

// Message returns the user-facing message for any error returned by Service.
func Message(err error) string {
	if errors.Is(err, ErrEmailNotVerified) {
		return MessageEmailNotVerified
	}
	var fe *failure.Error
	if errors.As(err, &fe) && errors.Is(fe.Err, failure.ErrAuth) {
		return MessageFor(fe.Code)
	}
	return MessageAuthFailed
}

// Code returns the auth error code carried by err, or "".
func Code(err error) string {
	if errors.Is(err, ErrEmailNotVerified) {
		return CodeEmailNotVerified
	}
	var fe *failure.Error
	if errors.As(err, &fe) && errors.Is(fe.Err, failure.ErrAuth) {
		return fe.Code
	}
	return ""
}
