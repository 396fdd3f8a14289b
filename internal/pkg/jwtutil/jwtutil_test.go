package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 42, "site-lead")
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	require.Equal(t, uint(42), claims.UserID)
	require.Equal(t, "site-lead", claims.Username)
	require.Equal(t, "42", claims.Subject)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 1, "u")
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := GenerateToken("secret", -time.Minute, 1, "u")
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
