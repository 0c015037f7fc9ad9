package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordFormat(t *testing.T) {
	hash, err := HashPassword("secret-password", fastParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"), hash)

	other, err := HashPassword("secret-password", fastParams)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts must differ")

	_, err = HashPassword("", fastParams)
	assert.Error(t, err)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret-password", fastParams)
	require.NoError(t, err)

	ok, err := VerifyPassword("secret-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("secret-passworD", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	for _, hash := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1,x=2$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	} {
		_, err := VerifyPassword("x", hash)
		assert.ErrorIs(t, err, ErrInvalidHash, hash)
	}
}

func TestStaticUsers(t *testing.T) {
	users := NewStaticUsers(User{Username: "Grace"}, User{ID: "7", Username: "linus"})
	assert.Equal(t, 2, users.Len())

	u, err := users.FindByUsername(context.Background(), "grace")
	require.NoError(t, err)
	assert.Equal(t, "Grace", u.ID)

	_, err = users.FindByUsername(context.Background(), "ken")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
