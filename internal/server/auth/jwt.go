// Package auth signs and verifies the JWTs handed out to clients. Access
// and refresh tokens use different secrets and carry a purpose claim, so a
// token of one kind never verifies as the other.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

var (
	ErrExpired        = errors.New("token expired")
	ErrMalformed      = errors.New("token malformed")
	ErrBadSignature   = errors.New("token signature invalid")
	ErrUnknownPurpose = errors.New("unknown token purpose")
)

// Claims is the JWT body: registered claims plus the token purpose.
type Claims struct {
	jwt.RegisteredClaims
	Purpose Purpose `json:"purpose"`
}

// Payload is what a caller puts into a token and gets back on verification.
type Payload struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Codec struct {
	secrets map[Purpose][]byte
	issuer  string
	now     func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now for both signing and verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(accessSecret, refreshSecret, issuer string, opts ...Option) *Codec {
	c := &Codec{
		secrets: map[Purpose][]byte{
			PurposeAccess:  []byte(accessSecret),
			PurposeRefresh: []byte(refreshSecret),
		},
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign returns an HS256 token for p that expires ttl from now. An empty
// TokenID is replaced with a fresh UUID so two tokens signed in the same
// second still differ.
func (c *Codec) Sign(p Payload, purpose Purpose, ttl time.Duration) (string, error) {
	secret, ok := c.secrets[purpose]
	if !ok {
		return "", ErrUnknownPurpose
	}

	tokenID := p.TokenID
	if tokenID == "" {
		tokenID = uuid.NewString()
	}

	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ID:        tokenID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and purpose, and returns the
// payload. Failures are one of ErrExpired, ErrBadSignature or ErrMalformed.
func (c *Codec) Verify(token string, purpose Purpose) (*Payload, error) {
	secret, ok := c.secrets[purpose]
	if !ok {
		return nil, ErrUnknownPurpose
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose %q", ErrMalformed, claims.Purpose)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrMalformed)
	}

	p := &Payload{UserID: claims.Subject, TokenID: claims.ID}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
