package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrSecretMissing indicates the codec was constructed without a signing secret.
var ErrSecretMissing = errors.New("jwt: signing secret is required")

// ErrTokenInvalid covers expired, malformed, and badly signed session tokens.
// Callers get no further detail so token probing yields a uniform answer.
var ErrTokenInvalid = errors.New("jwt: token invalid")

const defaultSessionTTL = 24 * time.Hour

// SessionClaims carries the authenticated user identifier plus registered claims.
type SessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// SessionTokenCodec mints and validates HS256 session tokens.
type SessionTokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionTokenCodec constructs a codec. The secret must come from
// configuration; an empty value is a startup error, never a fallback.
func NewSessionTokenCodec(secret, issuer string, ttl time.Duration) (*SessionTokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretMissing
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionTokenCodec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (c *SessionTokenCodec) WithClock(now func() time.Time) *SessionTokenCodec {
	c.now = now
	return c
}

// Generate signs a session token for the given user.
func (c *SessionTokenCodec) Generate(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("jwt: user id is required")
	}

	issuedAt := c.now().UTC()
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token, returning the user ID.
// Every failure mode maps to ErrTokenInvalid.
func (c *SessionTokenCodec) Validate(tokenString string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
	)
	if err != nil || !token.Valid {
		return "", ErrTokenInvalid
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return "", ErrTokenInvalid
	}
	return claims.UserID, nil
}
