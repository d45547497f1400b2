package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treechat-dev/treechat/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := New("secret", time.Hour)
	user := domain.User{Id: 42, Email: "user@example.com", Admin: true}

	tokenStr, err := svc.NewToken(user)
	require.NoError(t, err)

	token, err := svc.DecodeToken(tokenStr)
	require.NoError(t, err)

	claims, ok := token.Claims.(gojwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(42), claims["uid"])
	assert.Equal(t, "user@example.com", claims["email"])
	assert.Equal(t, true, claims["admin"])
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	tokenStr, err := New("secret", time.Hour).NewToken(domain.User{Id: 1, Email: "a@b.c"})
	require.NoError(t, err)

	_, err = New("other", time.Hour).DecodeToken(tokenStr)
	assert.Error(t, err)
}

func TestDecodeRejectsExpired(t *testing.T) {
	tokenStr, err := New("secret", -time.Minute).NewToken(domain.User{Id: 1, Email: "a@b.c"})
	require.NoError(t, err)

	_, err = New("secret", time.Hour).DecodeToken(tokenStr)
	assert.Error(t, err)
}
