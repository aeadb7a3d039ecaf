package services

import (
	"errors"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

var (
	ErrPasswordLength     = errors.New("password must be between 8 and 128 characters long")
	ErrPasswordLower      = errors.New("password must contain a lowercase letter")
	ErrPasswordUpper      = errors.New("password must contain an uppercase letter")
	ErrPasswordDigit      = errors.New("password must contain a digit")
	ErrPasswordSpecial    = errors.New("password must contain a special character")
	ErrPasswordWhitespace = errors.New("password must not contain whitespace")
)

// ValidatePassword checks pw against the password policy and returns the
// first rule it breaks.
func ValidatePassword(pw string) error {
	if n := utf8.RuneCountInString(pw); n < minPasswordLength || n > maxPasswordLength {
		return ErrPasswordLength
	}

	var lower, upper, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsSpace(r):
			return ErrPasswordWhitespace
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}

	switch {
	case !lower:
		return ErrPasswordLower
	case !upper:
		return ErrPasswordUpper
	case !digit:
		return ErrPasswordDigit
	case !special:
		return ErrPasswordSpecial
	}
	return nil
}

func HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether pw matches hash. An empty hash never
// matches, which covers accounts created through Google.
func CheckPassword(hash, pw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// decoyHash stands in for accounts without a usable hash so that a login
// attempt against them costs one bcrypt comparison like any other.
var decoyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("decoy password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
})
