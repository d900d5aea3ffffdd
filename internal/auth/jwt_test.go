package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewJWTManager("secret", "web-api", time.Hour)

	token, err := m.Generate("u1", "employee")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "employee", claims.Role)

	caller, err := m.Validator()(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", caller.ID)
	assert.Equal(t, "employee", caller.Role)
}

func TestValidate_Rejects(t *testing.T) {
	m := NewJWTManager("secret", "web-api", time.Hour)

	expired, err := NewJWTManager("secret", "web-api", -time.Minute).Generate("u1", "user")
	require.NoError(t, err)
	otherKey, err := NewJWTManager("other", "web-api", time.Hour).Generate("u1", "user")
	require.NoError(t, err)
	otherIssuer, err := NewJWTManager("secret", "someone-else", time.Hour).Generate("u1", "user")
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"alg none":     none,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Validate(token)
			assert.Error(t, err)
		})
	}
}

func TestValidate_SubjectFallback(t *testing.T) {
	m := NewJWTManager("secret", "", time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "u9",
		"role": "user",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.UserID)
}
