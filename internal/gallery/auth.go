package gallery

import (
	"crypto/subtle"
	"strings"
)

// Auth checks the shared admin secret. The secret doubles as the bearer
// token sent on mutating requests.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Check compares password with the secret in constant time.
func (a *Auth) Check(password string) bool {
	if len(a.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), a.secret) == 1
}

// CheckHeader validates an Authorization header of the form "Bearer <secret>".
func (a *Auth) CheckHeader(header string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return a.Check(strings.TrimSpace(token))
}
