// Package tokens issues and validates the HS256 bearer tokens handed out on
// login and registration.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("jwt secret is empty")
	ErrInvalidConfig = errors.New("invalid token config")
	ErrInvalidToken  = errors.New("invalid token")
)

type AccessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is what a valid token proves about its bearer.
type Identity struct {
	UserID    uint
	Username  string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

func (c Config) validate() error {
	if len(c.Secret) == 0 {
		return ErrMissingSecret
	}
	if c.Issuer == "" || c.Audience == "" {
		return errors.Join(ErrInvalidConfig, errors.New("issuer and audience are required"))
	}
	if c.TTL <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("ttl must be positive"))
	}
	return nil
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
