package cryptox

import (
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// cheap parameters keep the suite fast; Verify reads them back from the hash.
var testParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestPINHasher_HashAndVerify(t *testing.T) {
	h := NewPINHasher(testParams)

	encoded, err := h.Hash("1234")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotContains(t, encoded, "1234$")

	ok, err := h.Verify("1234", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("0000", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPINHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewPINHasher(testParams)
	a, err := h.Hash("1234")
	require.NoError(t, err)
	b, err := h.Hash("1234")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPINHasher_VerifyUsesStoredParams(t *testing.T) {
	encoded, err := NewPINHasher(testParams).Hash("4321")
	require.NoError(t, err)

	other := NewPINHasher(Argon2Params{Memory: 2048, Iterations: 2, Parallelism: 2, SaltLength: 8, KeyLength: 16})
	ok, err := other.Verify("4321", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPINHasher_EmptyPIN(t *testing.T) {
	_, err := NewPINHasher(testParams).Hash("")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestPINHasher_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("2468"), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewPINHasher(testParams)
	ok, err := h.Verify("2468", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("1357", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPINHasher_MalformedHash(t *testing.T) {
	h := NewPINHasher(testParams)
	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=1024,t=1,p=1$onlysalt",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$aGFzaA",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
	} {
		_, err := h.Verify("1234", bad)
		assert.ErrorIs(t, err, ErrMalformedHash, bad)
	}
}
