package signer

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func testKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return ed25519.NewKeyFromSeed(seed)
}

// verifyIntent checks a serialized signature against intent||data.
func verifyIntent(t *testing.T, serialized string, intent, data []byte, pub ed25519.PublicKey) bool {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(serialized)
	require.NoError(t, err)
	require.Len(t, raw, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	require.Equal(t, SchemeED25519, raw[0])
	require.Equal(t, []byte(pub), raw[1+ed25519.SignatureSize:])

	digest := blake2b.Sum256(append(append([]byte{}, intent...), data...))
	return ed25519.Verify(pub, digest[:], raw[1:1+ed25519.SignatureSize])
}

func TestAddressFromPublicKey(t *testing.T) {
	pub := testKey(t).Public().(ed25519.PublicKey)
	addr := AddressFromPublicKey(pub)

	assert.Len(t, addr, 66)
	assert.Equal(t, "0x", addr[:2])
	_, err := hex.DecodeString(addr[2:])
	assert.NoError(t, err)
	assert.Equal(t, addr, AddressFromPublicKey(pub))

	other := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)).Public().(ed25519.PublicKey)
	assert.NotEqual(t, addr, AddressFromPublicKey(other))
}

func TestParsePrivateKey(t *testing.T) {
	key := testKey(t)
	seed := key.Seed()

	t.Run("hex", func(t *testing.T) {
		parsed, err := ParsePrivateKey(hex.EncodeToString(seed))
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
	})

	t.Run("0x-prefixed hex", func(t *testing.T) {
		parsed, err := ParsePrivateKey("0x" + hex.EncodeToString(seed))
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
	})

	t.Run("base64", func(t *testing.T) {
		parsed, err := ParsePrivateKey(base64.StdEncoding.EncodeToString(seed))
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParsePrivateKey("not a key!!")
		assert.Error(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := ParsePrivateKey(hex.EncodeToString(seed[:16]))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32-byte seed")
	})
}

func TestDirectKeySigner(t *testing.T) {
	key := testKey(t)
	pub := key.Public().(ed25519.PublicKey)
	s := NewDirectKeySigner(key)

	t.Run("address matches the public key", func(t *testing.T) {
		assert.Equal(t, AddressFromPublicKey(pub), s.Address())
	})

	t.Run("transaction signature verifies", func(t *testing.T) {
		sig, err := s.SignTransaction([]byte("tx-bytes"))
		require.NoError(t, err)
		assert.True(t, verifyIntent(t, sig, intentTransaction, []byte("tx-bytes"), pub))
	})

	t.Run("personal message signature verifies", func(t *testing.T) {
		signed, err := s.SignPersonalMessage([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), signed.Bytes)
		assert.True(t, verifyIntent(t, signed.Signature, intentPersonalMessage, []byte("hello"), pub))
	})

	t.Run("intents do not cross-validate", func(t *testing.T) {
		sig, err := s.SignTransaction([]byte("payload"))
		require.NoError(t, err)
		assert.False(t, verifyIntent(t, sig, intentPersonalMessage, []byte("payload"), pub))
	})
}

func TestZkLoginSigner(t *testing.T) {
	ephemeral := testKey(t)
	state := ZkLoginState{
		WalletAddress: "0xzk",
		AddressSeed:   "12345",
		MaxEpoch:      110,
		Proof:         json.RawMessage(`{"a":["1"]}`),
	}

	t.Run("rejects incomplete state", func(t *testing.T) {
		_, err := NewZkLoginSigner(ephemeral, ZkLoginState{Proof: state.Proof})
		assert.Error(t, err)
		_, err = NewZkLoginSigner(ephemeral, ZkLoginState{WalletAddress: "0xzk"})
		assert.Error(t, err)
	})

	t.Run("address comes from the login state", func(t *testing.T) {
		s, err := NewZkLoginSigner(ephemeral, state)
		require.NoError(t, err)
		assert.Equal(t, "0xzk", s.Address())
	})

	t.Run("transaction signature wraps proof and epoch", func(t *testing.T) {
		s, err := NewZkLoginSigner(ephemeral, state)
		require.NoError(t, err)

		sig, err := s.SignTransaction([]byte("tx-bytes"))
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(sig)
		require.NoError(t, err)
		var composite zkLoginSignature
		require.NoError(t, json.Unmarshal(raw, &composite))

		assert.Equal(t, uint64(110), composite.MaxEpoch)
		assert.Equal(t, "12345", composite.Inputs.AddressSeed)
		assert.JSONEq(t, `{"a":["1"]}`, string(composite.Inputs.ProofPoints))

		pub := ephemeral.Public().(ed25519.PublicKey)
		assert.True(t, verifyIntent(t, composite.UserSignature, intentTransaction, []byte("tx-bytes"), pub))
	})

	t.Run("personal messages carry no proof envelope", func(t *testing.T) {
		s, err := NewZkLoginSigner(ephemeral, state)
		require.NoError(t, err)

		signed, err := s.SignPersonalMessage([]byte("hello"))
		require.NoError(t, err)
		pub := ephemeral.Public().(ed25519.PublicKey)
		assert.True(t, verifyIntent(t, signed.Signature, intentPersonalMessage, []byte("hello"), pub))
	})
}

// Both implementations must be usable wherever a Signer is expected.
var (
	_ Signer = (*DirectKeySigner)(nil)
	_ Signer = (*ZkLoginSigner)(nil)
)
