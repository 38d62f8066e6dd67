package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// defaultTokenTTL is used when no TTL is configured.
const defaultTokenTTL = 15 * time.Minute

// Claims are the JWT claims issued by the bridge.
type Claims struct {
	jwt.RegisteredClaims
	// Scope is the access scope of the token. The bridge issues a single
	// "admin" scope today; the field keeps tokens forward-compatible.
	Scope string `json:"scope"`
}

// ScopeAdmin grants full access to the admin API.
const ScopeAdmin = "admin"

// GenerateToken creates a signed HS256 access token.
// Tokens are short-lived and validated by signature only (no storage hit).
//
// Parameters:
//   - subject: Token subject, recorded in the "sub" claim
//   - secret: HMAC signing secret
//   - ttl: Token lifetime (defaults to 15 minutes when zero)
//
// Returns:
//   - string: The signed compact JWT
//   - error: ErrSecretRequired or a signing failure
func GenerateToken(subject, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrSecretRequired
	}
	if ttl == 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: ScopeAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses an access token, returning its claims.
// It checks the signature, expiry, and required fields.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Scope == "" {
		return nil, fmt.Errorf("%w: missing scope", ErrTokenInvalid)
	}

	return claims, nil
}

// VerifySecret compares a presented API secret against the configured one
// in constant time.
func VerifySecret(presented, configured string) error {
	if configured == "" {
		return ErrSecretRequired
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) != 1 {
		return ErrSecretMismatch
	}
	return nil
}
