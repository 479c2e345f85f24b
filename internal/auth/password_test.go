package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotContains(t, hash, "correct horse")
	assert.True(t, strings.HasPrefix(hash, "$2"))

	ok, err := h.Verify("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "each hash carries its own salt")
}

func TestHasher_MalformedHash(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost).Verify("x", "not-a-hash")
	assert.Error(t, err)
}

func TestNewHasher_CostFallback(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
}
