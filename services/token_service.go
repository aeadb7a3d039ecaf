package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"photohunter/models"
)

const (
	purposeVerifyEmail   = "verify-email"
	verificationTokenTTL = 24 * time.Hour
)

var ErrWrongTokenPurpose = errors.New("token was issued for another purpose")

// Claims is the JWT payload. Subject carries the user's email.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and checks HS256 tokens. It holds no state besides
// the key, so tokens stay valid across restarts until they expire.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *TokenService) sign(claims Claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("while signing token: %w", err)
	}
	return token, nil
}

func (s *TokenService) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// CreateToken returns a login token for u.
func (s *TokenService) CreateToken(u models.User) (string, error) {
	return s.sign(Claims{Name: u.FullName, RegisteredClaims: s.registered(u.Email, s.ttl)})
}

func (s *TokenService) CreateVerificationToken(email string) (string, error) {
	return s.sign(Claims{Purpose: purposeVerifyEmail, RegisteredClaims: s.registered(email, verificationTokenTTL)})
}

func (s *TokenService) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// ParseToken validates a login token and returns its claims.
func (s *TokenService) ParseToken(token string) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, ErrWrongTokenPurpose
	}
	return claims, nil
}

// ParseVerificationToken returns the email a verification token was issued for.
func (s *TokenService) ParseVerificationToken(token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	if claims.Purpose != purposeVerifyEmail {
		return "", ErrWrongTokenPurpose
	}
	return claims.Subject, nil
}
