// internal/app/system/password/password.go

// Package password provides credential hashing, strength validation, and
// random password generation for provisioning flows.
package password

import (
	"crypto/rand"
	"math/big"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost matches the cost used across the stored credential base.
const BcryptCost = 12

// MinLength is the minimum accepted password length.
const MinLength = 10

// Encoder hashes and verifies credentials. The concrete algorithm is an
// implementation detail of the store.
type Encoder interface {
	Hash(plain string) (string, error)
	Matches(plain, hash string) bool
}

// Bcrypt is the production Encoder.
type Bcrypt struct{}

func NewBcrypt() Bcrypt { return Bcrypt{} }

func (Bcrypt) Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (Bcrypt) Matches(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IsValid reports whether a candidate password meets the strength policy:
// minimum length plus at least one letter and one digit.
func IsValid(plain string) bool {
	if len(plain) < MinLength {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range plain {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

const generateAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// Generate returns a random password suitable for newly provisioned or
// reset accounts. Ambiguous characters are excluded, and the result
// always satisfies IsValid.
func Generate() (string, error) {
	const length = 16
	max := big.NewInt(int64(len(generateAlphabet)))
	for {
		buf := make([]byte, length)
		for i := range buf {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			buf[i] = generateAlphabet[n.Int64()]
		}
		if p := string(buf); IsValid(p) {
			return p, nil
		}
	}
}
