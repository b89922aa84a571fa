// Package token issues and verifies the signed tokens students carry after
// joining a session.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pavelanni/satsession/internal/model"
)

// DefaultTTL covers a full test day.
const DefaultTTL = 12 * time.Hour

const issuer = "satsession"

// Claims binds a student to one session.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies student tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer. A non-positive ttl means DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("token secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for the student in the session.
func (i *Issuer) Issue(id model.StudentIdentity) (string, error) {
	now := i.now()
	claims := Claims{
		SessionID: id.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.StudentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the identity.
// Any failure is reported as model.ErrUnauthorized.
func (i *Issuer) Verify(raw string) (model.StudentIdentity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return model.StudentIdentity{}, fmt.Errorf("verify token: %w: %w", model.ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return model.StudentIdentity{}, fmt.Errorf("token missing identity: %w", model.ErrUnauthorized)
	}
	return model.StudentIdentity{StudentID: claims.Subject, SessionID: claims.SessionID}, nil
}
