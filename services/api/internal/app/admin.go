package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"termfolio/pkg/auth"
)

// AdminSession is an issued admin bearer token.
type AdminSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminLogin exchanges the admin password for a bearer token.
func (a *App) AdminLogin(_ context.Context, password string) (AdminSession, error) {
	if a.adminTokens == nil || a.adminHash == "" {
		return AdminSession{}, ErrAdminDisabled
	}
	if password == "" {
		return AdminSession{}, &ValidationError{Fields: map[string]string{"password": "Password is required"}}
	}
	if !auth.CheckPassword(password, a.adminHash) {
		return AdminSession{}, ErrInvalidCredentials
	}
	token, exp, err := a.adminTokens.Issue()
	if err != nil {
		return AdminSession{}, err
	}
	return AdminSession{Token: token, ExpiresAt: exp}, nil
}

// VerifyAdmin validates a bearer token and returns its token id.
func (a *App) VerifyAdmin(ctx context.Context, token string) (string, error) {
	if a.adminTokens == nil {
		return "", ErrAdminDisabled
	}
	claims, err := a.adminTokens.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenRevoked) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("verify admin token: %w", err)
	}
	return claims.ID, nil
}

// AdminLogout revokes token until its expiry.
func (a *App) AdminLogout(ctx context.Context, token string) error {
	if a.adminTokens == nil {
		return ErrAdminDisabled
	}
	if err := a.adminTokens.Revoke(ctx, token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("revoke admin token: %w", err)
	}
	return nil
}
