package identity

import (
	"context"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, secret []byte, mutate func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()

	builder := jwt.NewBuilder().
		Subject("user-1").
		Issuer("conduit").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Claim("tenant_id", "acme").
		Claim("roles", []string{"admin", "reader"})
	if mutate != nil {
		builder = mutate(builder)
	}

	token, err := builder.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, secret))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifier_Verify(t *testing.T) {
	ctx := context.Background()
	v, err := NewVerifier(testSecret, "conduit")
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		p, err := v.Verify(ctx, signToken(t, testSecret, nil))
		require.NoError(t, err)
		assert.Equal(t, "user-1", p.UserID)
		assert.Equal(t, "acme", p.TenantID)
		assert.Equal(t, []string{"admin", "reader"}, p.Roles)
		assert.False(t, p.Anonymous())
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := v.Verify(ctx, signToken(t, []byte("another-secret-another-secret!!!"), nil))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, testSecret, func(b *jwt.Builder) *jwt.Builder {
			return b.Expiration(time.Now().Add(-time.Minute))
		})
		_, err := v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signToken(t, testSecret, func(b *jwt.Builder) *jwt.Builder {
			return b.Issuer("someone-else")
		})
		_, err := v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestVerifier_FromAuthorizationHeader(t *testing.T) {
	ctx := context.Background()
	v, err := NewVerifier(testSecret, "")
	require.NoError(t, err)

	t.Run("missing header is anonymous", func(t *testing.T) {
		p, err := v.FromAuthorizationHeader(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, p)
		assert.True(t, p.Anonymous())
	})

	t.Run("bearer token", func(t *testing.T) {
		p, err := v.FromAuthorizationHeader(ctx, "Bearer "+signToken(t, testSecret, nil))
		require.NoError(t, err)
		assert.Equal(t, "user-1", p.UserID)
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		_, err := v.FromAuthorizationHeader(ctx, "Basic dXNlcjpwYXNz")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPrincipal_HasAnyRole(t *testing.T) {
	admin := &Principal{UserID: "u1", Roles: []string{"admin"}}

	assert.True(t, admin.HasAnyRole([]string{"admin", "ops"}))
	assert.True(t, admin.HasAnyRole(nil))
	assert.False(t, admin.HasAnyRole([]string{"ops"}))

	var anon *Principal
	assert.False(t, anon.HasAnyRole(nil))
	assert.False(t, anon.HasAnyRole([]string{"admin"}))
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	_, err := NewVerifier(nil, "")
	assert.Error(t, err)
}
