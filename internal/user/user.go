// Package user provides persistence for gateway user accounts.
//
// Accounts carry the user's own Adafruit IO credentials; the session
// layer reads them after login to dial the broker on the user's behalf.
package user

import "errors"

// Sentinel errors for account persistence. Check with errors.Is().
var (
	ErrNotFound    = errors.New("user: not found")
	ErrEmailExists = errors.New("user: email already registered")
)

// User is a gateway account document.
type User struct {
	No               int    `bson:"no" json:"no"`
	Name             string `bson:"name" json:"name"`
	Email            string `bson:"email" json:"email"`
	Password         string `bson:"password" json:"-"`
	AdafruitUsername string `bson:"username_adafruit" json:"username_adafruit"`
	AdafruitKey      string `bson:"key_adafruit" json:"-"`
}

// HasBrokerCredentials reports whether the account carries a complete
// Adafruit credential pair.
func (u *User) HasBrokerCredentials() bool {
	return u.AdafruitUsername != "" && u.AdafruitKey != ""
}
