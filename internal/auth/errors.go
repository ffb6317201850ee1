package auth

import "errors"

// Error taxonomy for the authentication core. Handlers map these to transport
// responses; everything else is an internal failure and goes to Sentry.
var (
	// ErrInvalidCredential covers malformed, expired and tampered tokens as
	// well as bad passwords. Callers must not be able to tell which.
	ErrInvalidCredential = errors.New("invalid or expired credential")

	// ErrStaleCredential marks a token minted before the account's last
	// password reset. The token itself is still cryptographically valid.
	ErrStaleCredential = errors.New("credential superseded by password reset")

	// ErrUnknownIdentity means the claims reference no account. Internal
	// only; the boundary reports it as an invalid credential.
	ErrUnknownIdentity = errors.New("unknown identity")

	ErrForbidden       = errors.New("insufficient privileges")
	ErrConflict        = errors.New("email already registered")
	ErrAlreadyVerified = errors.New("user already verified")

	// ErrDispatchFailure wraps provider errors from email or image upload.
	ErrDispatchFailure = errors.New("dispatch failure")
)
