package session

import "crypto/subtle"

// Verifier checks a presented password against the stored secret.
// Injected so the comparison scheme can change without touching the
// session flow.
type Verifier interface {
	Verify(presented, stored string) bool
}

// PlaintextVerifier compares passwords in constant time. The account
// store keeps passwords as plain text; this verifier matches that.
type PlaintextVerifier struct{}

// Verify reports whether the presented password matches the stored one.
func (PlaintextVerifier) Verify(presented, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
