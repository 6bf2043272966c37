package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"termfolio/internal/util"
)

const (
	adminSubject       = "admin"
	defaultJWTIssuer   = "termfolio-api"
	defaultJWTAudience = "termfolio-admin"
	defaultJWTLeeway   = 30 * time.Second
	minSecretLength    = 32
)

var (
	ErrInvalidToken = errors.New("invalid admin token")
	ErrTokenRevoked = errors.New("admin token revoked")
)

// AdminTokens issues and verifies HS256 bearer tokens for the admin API.
type AdminTokens struct {
	secret  []byte
	ttl     time.Duration
	revoker TokenRevoker
	now     func() time.Time
}

// NewAdminTokens builds an issuer. revoker may be nil, which disables logout.
func NewAdminTokens(secret string, ttl time.Duration, revoker TokenRevoker) (*AdminTokens, error) {
	if len(strings.TrimSpace(secret)) < minSecretLength {
		return nil, fmt.Errorf("admin token secret must be at least %d characters", minSecretLength)
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AdminTokens{secret: []byte(secret), ttl: ttl, revoker: revoker, now: time.Now}, nil
}

// Issue returns a signed token and its expiry.
func (a *AdminTokens) Issue() (string, time.Time, error) {
	now := a.now().UTC()
	exp := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		Issuer:    defaultJWTIssuer,
		Audience:  jwt.ClaimStrings{defaultJWTAudience},
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        util.NewID(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, claims and revocation.
func (a *AdminTokens) Verify(ctx context.Context, token string) (*jwt.RegisteredClaims, error) {
	claims, err := a.parse(token)
	if err != nil {
		return nil, err
	}
	if a.revoker != nil {
		revoked, err := a.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke invalidates token until it would have expired.
func (a *AdminTokens) Revoke(ctx context.Context, token string) error {
	if a.revoker == nil {
		return nil
	}
	claims, err := a.parse(token)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	return a.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time.Sub(a.now()))
}

func (a *AdminTokens) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(defaultJWTIssuer),
		jwt.WithAudience(defaultJWTAudience),
		jwt.WithSubject(adminSubject),
		jwt.WithLeeway(defaultJWTLeeway),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	return claims, nil
}
