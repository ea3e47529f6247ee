// Package auth verifies admin logins against bcrypt password hashes.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/legop3/MultiRoombaRover-sub000/internal/config"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyHash absorbs a compare for unknown usernames so the timing of a
// failed login does not reveal whether the username exists.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Verifier checks username/password pairs against the configured admins.
type Verifier struct {
	admins map[string]config.Admin
}

func NewVerifier(admins []config.Admin) *Verifier {
	m := make(map[string]config.Admin, len(admins))
	for _, a := range admins {
		m[a.Username] = a
	}
	return &Verifier{admins: m}
}

// Authenticate returns the role name granted by a successful login:
// "lockdown" for lockdown-capable admins, "admin" otherwise.
func (v *Verifier) Authenticate(username, password string) (string, error) {
	a, ok := v.admins[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	if a.Lockdown {
		return "lockdown", nil
	}
	return "admin", nil
}
