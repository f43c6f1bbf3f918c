package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken indicates a token that failed signature or claims
// validation.
var ErrInvalidToken = errors.New("invalid token")

// Claim names carried in gateway tokens.
const (
	claimTenant = "tenant_id"
	claimRoles  = "roles"
)

// Verifier validates HS256 bearer tokens signed with the gateway's
// shared secret and maps their claims onto a Principal.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier. Issuer is checked only when set.
func NewVerifier(secret []byte, issuer string) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	return &Verifier{secret: secret, issuer: issuer}, nil
}

// Verify parses and validates a compact JWT. The subject claim becomes
// the user id; tenant and roles come from private claims.
func (v *Verifier) Verify(ctx context.Context, token string) (*Principal, error) {
	opts := []jwt.ParseOption{
		jwt.WithContext(ctx),
		jwt.WithKey(jwa.HS256, v.secret),
		jwt.WithValidate(true),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseString(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	principal := &Principal{UserID: parsed.Subject()}

	if tenant, ok := parsed.Get(claimTenant); ok {
		if s, ok := tenant.(string); ok {
			principal.TenantID = s
		}
	}
	if raw, ok := parsed.Get(claimRoles); ok {
		principal.Roles = toRoles(raw)
	}

	return principal, nil
}

// FromAuthorizationHeader extracts the bearer token and verifies it.
// A missing header yields a nil principal and no error.
func (v *Verifier) FromAuthorizationHeader(ctx context.Context, header string) (*Principal, error) {
	if header == "" {
		return nil, nil
	}
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return nil, fmt.Errorf("%w: not a bearer token", ErrInvalidToken)
	}
	return v.Verify(ctx, strings.TrimSpace(header[len(prefix):]))
}

func toRoles(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	case string:
		if v == "" {
			return nil
		}
		return strings.Split(v, ",")
	default:
		return nil
	}
}
