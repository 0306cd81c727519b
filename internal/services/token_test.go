package services

import (
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	now := time.Now()
	svc.now = func() time.Time { return now }
	user := &models.User{ID: 12, Username: "writer", Role: models.RoleStaff}

	token, expires, err := svc.GenerateToken(user)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).Unix(), expires.Unix())

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 12, claims.UserID)
	assert.Equal(t, "writer", claims.Username)
	assert.True(t, claims.Staff)

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return now.Add(2 * time.Hour) }
		defer func() { svc.now = func() time.Time { return now } }()
		_, err := svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenService("other-secret", time.Hour)
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned token", func(t *testing.T) {
		none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &SignedDetails{UserID: 1}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateToken(none)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
