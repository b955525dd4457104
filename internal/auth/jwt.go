// Package auth provides the building blocks of MemberHub authentication:
// JWT access tokens, bcrypt password hashing, the GitHub OAuth provider, and
// the cookie middleware that ties them to HTTP requests.
//
// SESSION MODEL:
// Logins (password or OAuth) end with the server minting a signed JWT and
// storing it in an HttpOnly cookie. The token carries everything a request
// needs — member ID in "sub", expiry, issuer — so validating it is a pure
// signature check, no session table and no DB round trip. The flip side:
// tokens can't be revoked server-side, which is why their lifetime is short.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer is stamped into every token and checked on validation. Two
// apps accidentally sharing a JWT secret is a real failure mode; the issuer
// check means their tokens still don't validate here.
const tokenIssuer = "memberhub"

// tokenLifetime is deliberately short: a stateless token can't be revoked,
// so a leaked one should go stale before it's worth much.
const tokenLifetime = 15 * time.Minute

// TokenService signs and validates JWTs with an HMAC-SHA256 secret.
// The same secret does both, so every instance of the app must share it.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService. Secrets should be 32+ bytes of
// randomness in production (openssl rand -hex 32); anything under 16 is
// rejected outright.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds the standard registered claims; the member's internal ID
// rides in "sub" (Subject), the standard slot for the token's principal.
type claims struct {
	jwt.RegisteredClaims
}

// Generate mints a signed access token for the member.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, tokenLifetime)
}

// GenerateWithDuration mints a token with a custom lifetime. Tests use it to
// produce already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies a token and returns the member ID from its subject.
//
// The parse options pin down everything an attacker could bend:
// WithValidMethods forecloses algorithm-confusion tricks (an "alg":"none"
// token, or an RSA public key replayed as an HMAC secret), WithIssuer
// rejects tokens minted by other apps, and WithExpirationRequired refuses
// tokens that simply omit "exp".
func (s *TokenService) Validate(tokenStr string) (string, error) {
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
		jwt.WithIssuer(tokenIssuer),
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
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
