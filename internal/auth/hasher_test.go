package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("123")
	require.NoError(t, err)
	assert.True(t, h.Verify(hash, "123"))
	assert.False(t, h.Verify(hash, "1234"))
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, BcryptHasher{Cost: bcrypt.MinCost + 1}.NeedsRehash(hash))
	assert.True(t, h.NeedsRehash("not-a-hash"))
}

func TestBcryptHasherFromEnv(t *testing.T) {
	t.Setenv("BCRYPT_COST", "")
	assert.Equal(t, bcrypt.DefaultCost, BcryptHasherFromEnv().Cost)
	t.Setenv("BCRYPT_COST", "5")
	assert.Equal(t, 5, BcryptHasherFromEnv().Cost)
	t.Setenv("BCRYPT_COST", "99")
	assert.Equal(t, bcrypt.DefaultCost, BcryptHasherFromEnv().Cost)
}
