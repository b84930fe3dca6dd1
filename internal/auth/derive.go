package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// Deterministic zkLogin derivations. Each of these must produce the same
// output for the same inputs on every run: the prover, the salt backend and
// the chain verifier recompute them independently.

// zkAddressFlag tags zkLogin-derived addresses, distinguishing them from
// plain keypair addresses.
const zkAddressFlag = byte(0x05)

// ExtendedEphemeralPublicKey is the prover's encoding of the ephemeral
// public key: base64 of the scheme flag followed by the key bytes.
func ExtendedEphemeralPublicKey(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, 0x00)
	buf = append(buf, pub...)
	return base64.StdEncoding.EncodeToString(buf)
}

// ZkNonce derives the OAuth nonce from the ephemeral public key, the epoch
// ceiling and the per-attempt randomness. Embedding this nonce in the
// identity token is what ties the OAuth grant to the ephemeral keypair.
func ZkNonce(pub ed25519.PublicKey, maxEpoch uint64, randomness string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{0x00})
	h.Write(pub)
	var epoch [8]byte
	binary.BigEndian.PutUint64(epoch[:], maxEpoch)
	h.Write(epoch[:])
	h.Write([]byte(randomness))
	sum := h.Sum(nil)
	// 20 bytes -> 27 base64url characters, the length providers accept.
	return base64.RawURLEncoding.EncodeToString(sum[:20])
}

// NewRandomness produces the per-attempt randomness value fed to the nonce
// derivation and the proving service.
func NewRandomness() (string, error) {
	b, err := randomBytes(16)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// AddressSeed derives the value binding a proof to one user+application
// pairing, as a decimal string.
func AddressSeed(salt, claimName, claimValue, audience string) string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{salt, claimName, claimValue, audience} {
		h.Write([]byte(part))
		h.Write([]byte{0x00})
	}
	seed := new(big.Int).SetBytes(h.Sum(nil))
	return seed.String()
}

// ZkAddress derives the wallet address for an identity: blake2b-256 over the
// zkLogin flag, the length-prefixed issuer and the 32-byte address seed.
func ZkAddress(issuer, addressSeed string) string {
	seed, ok := new(big.Int).SetString(addressSeed, 10)
	if !ok {
		seed = new(big.Int)
	}
	seedBytes := seed.FillBytes(make([]byte, 32))

	h, _ := blake2b.New256(nil)
	h.Write([]byte{zkAddressFlag})
	h.Write([]byte{byte(len(issuer))})
	h.Write([]byte(issuer))
	h.Write(seedBytes)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
