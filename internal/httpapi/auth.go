package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"dragon-mcp/internal/config"
	"dragon-mcp/internal/tools"
)

var (
	ErrMissingToken     = errors.New("missing or invalid Authorization header")
	ErrInvalidToken     = errors.New("invalid API key")
	ErrInsufficientRole = errors.New("insufficient access for this operation")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

type roleKey struct{}

// Authenticator maps bearer API keys to roles.
type Authenticator struct {
	keys []apiKey
}

type apiKey struct {
	secret []byte
	role   tools.Role
}

// NewAuthenticator registers the configured keys. Empty keys are skipped.
func NewAuthenticator(cfg config.APIKeyConfig) *Authenticator {
	a := &Authenticator{}
	for _, k := range []struct {
		secret string
		role   tools.Role
	}{
		{cfg.Development, tools.RoleDevelopment},
		{cfg.Team, tools.RoleTeam},
		{cfg.Admin, tools.RoleAdmin},
	} {
		if s := strings.TrimSpace(k.secret); s != "" {
			a.keys = append(a.keys, apiKey{secret: []byte(s), role: k.role})
		}
	}
	return a
}

// Authenticate resolves the role of the request's bearer token.
func (a *Authenticator) Authenticate(r *http.Request) (tools.Role, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return 0, ErrMissingToken
	}
	token := []byte(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
	if len(token) == 0 {
		return 0, ErrMissingToken
	}

	var role tools.Role
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare(token, k.secret) == 1 && k.role > role {
			role = k.role
		}
	}
	if role == 0 {
		return 0, ErrInvalidToken
	}
	return role, nil
}

// RoleFrom returns the role stored by the auth middleware.
func RoleFrom(ctx context.Context) (tools.Role, bool) {
	role, ok := ctx.Value(roleKey{}).(tools.Role)
	return role, ok
}

func withRole(ctx context.Context, role tools.Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}
