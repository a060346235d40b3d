package session

import "errors"

// Sentinel errors for session establishment. Check with errors.Is().
var (
	// ErrInvalidCredentials is returned when the email is unknown or the
	// password does not match.
	ErrInvalidCredentials = errors.New("session: invalid credentials")

	// ErrMissingBrokerCredentials is returned when the authenticated
	// account has no Adafruit username or key on record.
	ErrMissingBrokerCredentials = errors.New("session: missing broker credentials")
)
