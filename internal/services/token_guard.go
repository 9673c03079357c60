package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadToken = errors.New("invalid api token")

// TokenGuard checks bearer tokens on mutating API calls. The configured
// token is hashed once at startup so the plaintext never sits in memory
// beyond boot. With no token configured the guard is open, which suits
// single-user local runs.
type TokenGuard struct {
	hash []byte
}

func NewTokenGuard(token string) (*TokenGuard, error) {
	if token == "" {
		return &TokenGuard{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &TokenGuard{hash: hash}, nil
}

// Enabled reports whether a token is required at all.
func (g *TokenGuard) Enabled() bool { return len(g.hash) > 0 }

// Verify checks a presented token.
func (g *TokenGuard) Verify(token string) error {
	if !g.Enabled() {
		return nil
	}
	if token == "" {
		return ErrBadToken
	}
	if bcrypt.CompareHashAndPassword(g.hash, []byte(token)) != nil {
		return ErrBadToken
	}
	return nil
}
