package auth

import "errors"

var (
	// ErrInvalidCredentials covers bad passwords and bad, expired,
	// malformed or superseded tokens. The causes stay distinguishable in
	// logs but the API surfaces them as one generic 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenRevoked marks a structurally valid refresh token that was
	// explicitly revoked before its natural expiry.
	ErrTokenRevoked = errors.New("refresh token revoked")
	// ErrEmailTaken is returned by Signup when the email is already
	// registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUnavailable is returned when a backing store cannot be reached or
	// times out. The operation is aborted with no partial state mutation.
	ErrUnavailable = errors.New("auth backend unavailable")
)
