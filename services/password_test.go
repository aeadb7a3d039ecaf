package services

import (
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		want     error
	}{
		{"too short", "T3s!", ErrPasswordLength},
		{"too long", "T3s!" + strings.Repeat("a", 125), ErrPasswordLength},
		{"no uppercase", "t3e!password", ErrPasswordUpper},
		{"no lowercase", "T3E!PASSWORD", ErrPasswordLower},
		{"no special character", "T3stPassword", ErrPasswordSpecial},
		{"no number", "Tes!Password", ErrPasswordDigit},
		{"with whitespace", "T3s! Password", ErrPasswordWhitespace},
		{"valid", "T3s!PA7sw0rd", nil},
		{"valid at max length", "T3s!" + strings.Repeat("a", 124), nil},
		{"valid with underscore", "test_Password_12412@!", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ValidatePassword(c.password); got != c.want {
				t.Errorf("ValidatePassword(%q) = %v, want %v", c.password, got, c.want)
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("T3s!PA7sw0rd")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hash == "T3s!PA7sw0rd" {
		t.Fatalf("password stored in plaintext")
	}
	if !CheckPassword(hash, "T3s!PA7sw0rd") {
		t.Errorf("CheckPassword rejected the right password")
	}
	if CheckPassword(hash, "not_valid") {
		t.Errorf("CheckPassword accepted a wrong password")
	}
	if CheckPassword("", "") {
		t.Errorf("CheckPassword accepted an empty hash")
	}
}
