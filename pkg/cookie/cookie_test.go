package cookie

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUnsign(t *testing.T) {
	s, err := NewSigner("keyboard cat")
	require.NoError(t, err)

	signed := s.Sign("abc-123")
	assert.True(t, strings.HasPrefix(signed, "s:abc-123."))

	v, ok := s.Unsign(signed)
	require.True(t, ok)
	assert.Equal(t, "abc-123", v)
}

func TestUnsignRejects(t *testing.T) {
	s, err := NewSigner("keyboard cat")
	require.NoError(t, err)
	signed := s.Sign("abc-123")

	other, err := NewSigner("another secret")
	require.NoError(t, err)

	last := signed[len(signed)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}

	cases := map[string]string{
		"empty":          "",
		"unsigned":       "abc-123",
		"no prefix":      strings.TrimPrefix(signed, "s:"),
		"no signature":   "s:abc-123",
		"empty value":    "s:.sig",
		"tampered value": strings.Replace(signed, "abc", "abd", 1),
		"tampered mac":   signed[:len(signed)-1] + string(flipped),
		"foreign secret": other.Sign("abc-123"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := s.Unsign(in)
			assert.False(t, ok)
		})
	}
}

func TestRotation(t *testing.T) {
	old, err := NewSigner("old-secret")
	require.NoError(t, err)
	rotated, err := NewSigner("new-secret", "old-secret")
	require.NoError(t, err)

	v, ok := rotated.Unsign(old.Sign("id"))
	require.True(t, ok)
	assert.Equal(t, "id", v)

	// New values are signed with the current secret only.
	_, ok = old.Unsign(rotated.Sign("id"))
	assert.False(t, ok)
}

func TestNewSignerEmpty(t *testing.T) {
	_, err := NewSigner("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestOptionsCookie(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := Options{MaxAge: time.Hour, HTTPOnly: true, SameSite: http.SameSiteLaxMode}

	c := opts.Cookie("sid", "value", now)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 3600, c.MaxAge)
	assert.Equal(t, now.Add(time.Hour), c.Expires)
	assert.True(t, c.HttpOnly)

	expired := opts.Expired("sid")
	assert.Equal(t, -1, expired.MaxAge)
	assert.Empty(t, expired.Value)
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, ParseSameSite("Strict"))
	assert.Equal(t, http.SameSiteNoneMode, ParseSameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite(""))
}
