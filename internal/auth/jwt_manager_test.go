package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTManager(t *testing.T) {
	_, err := NewJWTManager("")
	assert.Error(t, err)

	jm, err := NewJWTManager("test-secret")
	require.NoError(t, err)
	assert.Equal(t, "HS256", jm.algorithm)
}

func TestJWTManager_RoundTrip(t *testing.T) {
	jm, err := NewJWTManager("test-secret")
	require.NoError(t, err)
	ctx := context.Background()

	token, expiresAt, err := jm.GenerateToken(ctx, "user-1", "a@example.com", "Alice", []string{"user"}, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := jm.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, []string{"user"}, claims.Roles)
}

func TestJWTManager_Rejects(t *testing.T) {
	jm, _ := NewJWTManager("test-secret")
	other, _ := NewJWTManager("other-secret")
	ctx := context.Background()

	t.Run("wrong key", func(t *testing.T) {
		token, _, err := other.GenerateToken(ctx, "user-1", "a@example.com", "", nil, time.Hour)
		require.NoError(t, err)
		_, err = jm.ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, _, err := jm.GenerateToken(ctx, "user-1", "a@example.com", "", nil, -time.Minute)
		require.NoError(t, err)
		_, err = jm.ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := jm.ValidateToken(ctx, "not-a-token")
		assert.Error(t, err)
	})
}

func TestJWTManager_RefreshToken(t *testing.T) {
	jm, _ := NewJWTManager("test-secret")
	ctx := context.Background()

	token, _, err := jm.GenerateToken(ctx, "user-1", "a@example.com", "Alice", []string{"user"}, time.Minute)
	require.NoError(t, err)

	refreshed, expiresAt, err := jm.RefreshToken(ctx, token, 2*time.Hour)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now().Add(time.Hour)))

	claims, err := jm.ValidateToken(ctx, refreshed)
	require.NoError(t, err)
	assert.Equal(t, "Alice", claims.Name)

	_, _, err = jm.RefreshToken(ctx, "bad", time.Hour)
	assert.Error(t, err)
}

func TestStaticIdentity(t *testing.T) {
	var id Identity = StaticIdentity{Subject: "user-1", Token: "tok"}
	assert.Equal(t, "user-1", id.SubjectID())
	assert.Equal(t, "tok", id.Credential())
}
