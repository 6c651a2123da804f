package security

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, KeySize)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func TestSealOpen(t *testing.T) {
	key := newKey(t)

	sealed, err := Seal(key, "EAAG-catalog-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "EAAG")

	plain, err := Open(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, "EAAG-catalog-token", plain)
}

func TestOpen_WrongKey(t *testing.T) {
	sealed, err := Seal(newKey(t), "secret")
	require.NoError(t, err)

	_, err = Open(newKey(t), sealed)
	assert.Error(t, err)
}

func TestOpen_TooShort(t *testing.T) {
	_, err := Open(newKey(t), base64.RawURLEncoding.EncodeToString([]byte("abc")))
	assert.ErrorIs(t, err, ErrSealedTooShort)
}

func TestParseKey(t *testing.T) {
	key := newKey(t)

	got, err := ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = ParseKey(base64.StdEncoding.EncodeToString(key[:16]))
	assert.ErrorContains(t, err, "32 bytes")

	_, err = ParseKey("not base64!")
	assert.Error(t, err)
}
