package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-accounts-api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload fields. Tokens are signed, not encrypted.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 JWTs with one secret and validity window.
// Access and refresh tokens each get their own Provider.
type Provider struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

// Option customises a Provider.
type Option func(*Provider)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(secret string, validity time.Duration, opts ...Option) (*Provider, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if validity <= 0 {
		return nil, fmt.Errorf("token validity must be positive, got %s", validity)
	}
	p := &Provider{secret: []byte(secret), validity: validity, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Validity is the window applied by Sign.
func (p *Provider) Validity() time.Duration { return p.validity }

// Sign issues a token for userID that expires after the configured validity.
func (p *Provider) Sign(userID string) (string, error) {
	return p.SignFor(userID, p.validity)
}

// SignFor issues a token for userID that expires validity from now.
func (p *Provider) SignFor(userID string, validity time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// exp has whole-second precision and jwt/v5 treats now == exp as expired.
// The leeway keeps a token valid through its expiry second; it expires once
// now > exp.
const expiryLeeway = time.Second

// Verify returns the user ID embedded in tokenStr. Failures are
// domain.ErrTokenMissing, domain.ErrTokenExpired or domain.ErrTokenInvalid.
func (p *Provider) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", domain.ErrTokenMissing
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(expiryLeeway),
		jwt.WithTimeFunc(p.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", domain.ErrTokenExpired
	default:
		return "", fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: no subject", domain.ErrTokenInvalid)
	}
	return claims.UserID, nil
}
