package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuhub/internal/router"
)

const testSecret = "test-secret-key-for-participant-tokens"

func TestDisabledServiceAcceptsAnything(t *testing.T) {
	svc := NewService("")
	assert.False(t, svc.Enabled())

	claims, err := svc.Authenticate("")
	require.NoError(t, err)
	assert.Nil(t, claims.PlayerID)
}

func TestIssueAndValidate(t *testing.T) {
	svc := NewService(testSecret)
	id := router.Number(7)

	token, err := svc.IssueToken(&id, "player", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Authenticate(token)
	require.NoError(t, err)
	require.NotNil(t, claims.PlayerID)
	assert.True(t, claims.PlayerID.Equal(id))
	assert.Equal(t, "player", claims.Role)
}

func TestStringPlayerID(t *testing.T) {
	svc := NewService(testSecret)
	id := router.String("alice")

	token, err := svc.IssueToken(&id, "", 0)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.PlayerID.Equal(id))
	assert.Empty(t, claims.Role)
}

func TestRejectsBadTokens(t *testing.T) {
	svc := NewService(testSecret)

	_, err := svc.Authenticate("")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authenticate("not-a-jwt")
	assert.ErrorIs(t, err, ErrUnauthorized)

	other, err := NewService("another-secret-of-sufficient-length").IssueToken(nil, "", time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(other)
	assert.ErrorIs(t, err, ErrUnauthorized)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.Authenticate(expired)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRejectsSentinelPlayerID(t *testing.T) {
	svc := NewService(testSecret)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"player_id": -1.0}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.Authenticate(signed)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRejectsNonHMAC(t *testing.T) {
	svc := NewService(testSecret)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Authenticate(unsigned)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
