package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/security"
)

func fastParams() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("fresh-basil-42", fastParams())
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=8192,t=1,p=1$")

	ok, err := security.VerifyPassword("fresh-basil-42", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("stale-basil-42", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = security.HashPassword("", fastParams())
	require.Error(t, err)
}

func TestVerifyPasswordBadHash(t *testing.T) {
	_, err := security.VerifyPassword("irrelevant", "not-a-hash")
	require.ErrorIs(t, err, security.ErrInvalidHash)

	_, err = security.VerifyPassword("irrelevant", "$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA")
	require.ErrorIs(t, err, security.ErrInvalidHash)
}

func TestNeedsRehash(t *testing.T) {
	hash, err := security.HashPassword("fresh-basil-42", fastParams())
	require.NoError(t, err)
	assert.False(t, security.NeedsRehash(hash, fastParams()))

	stronger := fastParams()
	stronger.ArgonTime = 3
	assert.True(t, security.NeedsRehash(hash, stronger))
	assert.True(t, security.NeedsRehash("garbage", fastParams()))
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, security.ValidatePasswordStrength("apples123"))
	require.Error(t, security.ValidatePasswordStrength("short1"))
	require.Error(t, security.ValidatePasswordStrength("onlyletters"))
	require.Error(t, security.ValidatePasswordStrength("1234567890"))
	require.Error(t, security.ValidatePasswordStrength(" apples123"))
}
