package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcryptTestCost)

	hash, err := h.Hash("123456")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "123456", hash)

	assert.NoError(t, h.Compare(hash, "123456"))
	assert.Error(t, h.Compare(hash, "654321"))
}

func TestBcryptHasher_HashesDiffer(t *testing.T) {
	h := NewBcryptHasher(bcryptTestCost)

	first, err := h.Hash("123456")
	require.NoError(t, err)
	second, err := h.Hash("123456")
	require.NoError(t, err)

	// Salted hashes must not repeat.
	assert.NotEqual(t, first, second)
}

// bcryptTestCost keeps the test fast; production uses the default cost.
const bcryptTestCost = 4
