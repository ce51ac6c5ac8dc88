// Package hash turns plaintext passwords into stored digests and checks
// plaintexts against them.
//
// New digests are always bcrypt. Legacy digests (unsalted SHA-256 hex, as
// written by earlier deployments) are still accepted by Verify so that
// existing accounts can log in and be upgraded.
package hash

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyPassword = errors.New("password must not be empty")

type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

type Bcrypt struct {
	Cost int
}

func NewBcrypt(cost int) Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Bcrypt{Cost: cost}
}

func (b Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashbytes), nil
}

func (b Bcrypt) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// Legacy is the unsalted deterministic SHA-256 digest. It is weaker than a
// salted slow hash and must not be used for new digests.
type Legacy struct{}

func (Legacy) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

func (l Legacy) Verify(password, digest string) bool {
	want, _ := l.Hash(password)
	return subtle.ConstantTimeCompare([]byte(want), []byte(digest)) == 1
}

// Chain hashes with bcrypt and verifies against whichever scheme produced
// the stored digest.
type Chain struct {
	Preferred Bcrypt
	Legacy    Legacy
}

func NewChain(cost int) Chain {
	return Chain{Preferred: NewBcrypt(cost)}
}

func (c Chain) Hash(password string) (string, error) {
	return c.Preferred.Hash(password)
}

func (c Chain) Verify(password, digest string) bool {
	if IsBcrypt(digest) {
		return c.Preferred.Verify(password, digest)
	}
	return c.Legacy.Verify(password, digest)
}

// NeedsUpgrade reports whether digest should be rehashed with the preferred
// scheme after a successful verification.
func (c Chain) NeedsUpgrade(digest string) bool {
	return !IsBcrypt(digest)
}

func IsBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
