package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPublicKey(t *testing.T, seed byte) ed25519.PublicKey {
	t.Helper()
	raw := make([]byte, ed25519.SeedSize)
	for i := range raw {
		raw[i] = seed
	}
	return ed25519.NewKeyFromSeed(raw).Public().(ed25519.PublicKey)
}

func TestZkNonce(t *testing.T) {
	pub := testPublicKey(t, 1)

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, ZkNonce(pub, 42, "r1"), ZkNonce(pub, 42, "r1"))
	})

	t.Run("sensitive to every input", func(t *testing.T) {
		base := ZkNonce(pub, 42, "r1")
		assert.NotEqual(t, base, ZkNonce(testPublicKey(t, 2), 42, "r1"))
		assert.NotEqual(t, base, ZkNonce(pub, 43, "r1"))
		assert.NotEqual(t, base, ZkNonce(pub, 42, "r2"))
	})

	t.Run("base64url, 27 characters", func(t *testing.T) {
		nonce := ZkNonce(pub, 42, "r1")
		assert.Len(t, nonce, 27)
		_, err := base64.RawURLEncoding.DecodeString(nonce)
		assert.NoError(t, err)
	})
}

func TestExtendedEphemeralPublicKey(t *testing.T) {
	pub := testPublicKey(t, 1)
	decoded, err := base64.StdEncoding.DecodeString(ExtendedEphemeralPublicKey(pub))
	require.NoError(t, err)
	require.Len(t, decoded, 33)
	assert.Equal(t, byte(0x00), decoded[0])
	assert.Equal(t, []byte(pub), decoded[1:])
}

func TestAddressSeed(t *testing.T) {
	t.Run("deterministic decimal string", func(t *testing.T) {
		seed := AddressSeed("salt", "sub", "user-1", "client-1")
		assert.Equal(t, seed, AddressSeed("salt", "sub", "user-1", "client-1"))
		for _, c := range seed {
			assert.Contains(t, "0123456789", string(c))
		}
	})

	t.Run("binds user and application", func(t *testing.T) {
		base := AddressSeed("salt", "sub", "user-1", "client-1")
		assert.NotEqual(t, base, AddressSeed("salt", "sub", "user-2", "client-1"))
		assert.NotEqual(t, base, AddressSeed("salt", "sub", "user-1", "client-2"))
		assert.NotEqual(t, base, AddressSeed("other", "sub", "user-1", "client-1"))
	})
}

func TestZkAddress(t *testing.T) {
	seed := AddressSeed("salt", "sub", "user-1", "client-1")

	addr := ZkAddress("https://accounts.google.com", seed)
	assert.True(t, strings.HasPrefix(addr, "0x"))
	assert.Len(t, addr, 66)
	assert.Equal(t, addr, ZkAddress("https://accounts.google.com", seed))
	assert.NotEqual(t, addr, ZkAddress("https://other.example", seed))
}
