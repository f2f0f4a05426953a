package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	require.NoError(t, h.Verify(hash, "secret1"))
	assert.ErrorIs(t, h.Verify(hash, "secret2"), ErrPasswordMismatch)
}

func TestHasher_RejectsOverlongPassword(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	_, err := h.Hash(strings.Repeat("p", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = h.Hash(strings.Repeat("p", MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestHasher_MalformedHashIsMismatch(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	assert.ErrorIs(t, h.Verify("not-a-bcrypt-hash", "secret1"), ErrPasswordMismatch)
}

func TestNewHasher_ClampsCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultCost, NewHasher(0).cost)
	assert.Equal(t, DefaultCost, NewHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}

func TestRandomHex(t *testing.T) {
	t.Parallel()

	a, err := RandomHex(SessionTokenBytes)
	require.NoError(t, err)
	b, err := RandomHex(SessionTokenBytes)
	require.NoError(t, err)

	assert.Len(t, a, 2*SessionTokenBytes)
	assert.NotEqual(t, a, b)
}
