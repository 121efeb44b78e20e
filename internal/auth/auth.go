// Package auth resolves verified bearer tokens into Principals. Downstream
// components only ever see a Principal, never a raw token.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
	"taskdeck/internal/store"
)

type Resolver struct {
	Secret string
	Store  store.Store
}

// Resolve verifies the token and loads the subject's identity. Any failure
// along the way is an authentication error; the caller cannot distinguish
// a forged token from a deleted user.
func (r Resolver) Resolve(ctx context.Context, token string) (domain.Principal, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Principal{}, apperr.Authentication("authentication required")
	}
	if strings.TrimSpace(r.Secret) == "" {
		return domain.Principal{}, apperr.Authentication("token verification not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(r.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return domain.Principal{}, apperr.Authentication("invalid or expired token")
	}
	if claims.Subject == "" {
		return domain.Principal{}, apperr.Authentication("token subject required")
	}
	u, err := r.Store.GetUser(ctx, claims.Subject)
	if err != nil {
		return domain.Principal{}, apperr.Authentication("unknown token subject")
	}
	return domain.Principal{
		UserID:   u.ID,
		OrgID:    u.OrgID,
		Role:     u.Role,
		IsActive: u.IsActive,
	}, nil
}

// IssueToken signs a token for a user id. Used by the CLI and tests; real
// credential flows live outside this service.
func (r Resolver) IssueToken(userID string, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(r.Secret))
}
