// Package auth provides JWT issuance and validation, password hashing,
// and the middleware that puts the authenticated identity into the
// request context.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "devstash"

// AccessTokenTTL is the lifetime of a session token.
const AccessTokenTTL = 24 * time.Hour

// Token purposes. A session token is never accepted as a reset token
// and vice versa; the purpose claim is checked on every validation.
const (
	purposeSession = "session"
	purposeReset   = "reset"
)

// TokenService signs and verifies the HMAC-signed session tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

type claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Generate creates a signed session token for the given userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, AccessTokenTTL)
}

// GenerateWithDuration creates a session token with a custom expiry.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	return s.generate(userID, d, purposeSession)
}

// GenerateReset creates a password-reset token. Reset tokens carry
// their own purpose claim, so they are useless as session cookies.
func (s *TokenService) GenerateReset(userID string, d time.Duration) (string, error) {
	return s.generate(userID, d, purposeReset)
}

func (s *TokenService) generate(userID string, d time.Duration, purpose string) (string, error) {
	now := time.Now()

	c := claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token, returning the userID
// from the subject claim.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	return s.validate(tokenStr, purposeSession)
}

// ValidateReset parses and verifies a password-reset token, returning
// the userID it was issued for. Session tokens are rejected here.
func (s *TokenService) ValidateReset(tokenStr string) (string, error) {
	return s.validate(tokenStr, purposeReset)
}

// validate checks the signature, issuer, expiry, and purpose. Pinning
// the method to HS256 prevents algorithm confusion attacks.
func (s *TokenService) validate(tokenStr, purpose string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Purpose != purpose {
		return "", fmt.Errorf("auth: token purpose %q not accepted here", c.Purpose)
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
