package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2hthailand/h2h-backend/pkg/config"
)

func testPasswordConfig() config.PasswordConfig {
	// Low-cost parameters keep the test fast; production values come from env.
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := testPasswordConfig()

	encoded, err := HashPassword("correct horse battery staple", cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := VerifyPassword("correct horse battery staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordSaltsEveryCall(t *testing.T) {
	cfg := testPasswordConfig()

	first, err := HashPassword("same input", cfg)
	require.NoError(t, err)
	second, err := HashPassword("same input", cfg)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestGenerateResetToken(t *testing.T) {
	token, digest, err := GenerateResetToken()
	require.NoError(t, err)

	assert.Len(t, token, 43)
	assert.Equal(t, digest, HashResetToken(token))
	assert.NotEqual(t, token, digest)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	_, err := VerifyPassword("anything", "not-an-argon-hash")
	assert.Error(t, err)
}
