// Package signer produces wallet signatures for transaction bytes and
// personal messages. Two implementations exist: a direct ed25519 keypair and
// a zkLogin signer backed by an ephemeral keypair plus a zero-knowledge
// proof. Callers depend only on the Signer interface and must not branch on
// the concrete implementation.
package signer

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SchemeED25519 is the signature scheme flag byte prepended to public keys
// and serialized signatures.
const SchemeED25519 = byte(0x00)

// Intent prefixes distinguish what a signature was produced over. A
// transaction signature must never validate as a personal-message signature
// and vice versa.
var (
	intentTransaction     = []byte{0x00, 0x00, 0x00}
	intentPersonalMessage = []byte{0x03, 0x00, 0x00}
)

// SignedMessage is the wallet encoding of a signed personal message: the
// original bytes and the serialized signature, both base64.
type SignedMessage struct {
	Bytes     string `json:"bytes"`
	Signature string `json:"signature"`
}

// Signer signs on behalf of a wallet.
type Signer interface {
	// Address returns the wallet address the signatures verify against.
	Address() string

	// SignTransaction signs raw transaction bytes and returns the
	// serialized signature the chain verifier expects.
	SignTransaction(txBytes []byte) (string, error)

	// SignPersonalMessage signs arbitrary bytes in the wallet's
	// personal-message encoding.
	SignPersonalMessage(msg []byte) (SignedMessage, error)
}

// AddressFromPublicKey derives the wallet address for an ed25519 public key:
// 0x-prefixed hex of blake2b-256 over the scheme flag followed by the key.
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, SchemeED25519)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}

// ParsePrivateKey decodes a 32-byte ed25519 seed given as hex (optionally
// 0x-prefixed) or base64.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("private key is neither hex nor base64")
		}
	}
	if len(raw) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key must be a %d-byte seed, got %d bytes", ed25519.SeedSize, len(raw))
	}
	return ed25519.NewKeyFromSeed(raw), nil
}

// DirectKeySigner signs with the wallet's own ed25519 keypair.
type DirectKeySigner struct {
	key     ed25519.PrivateKey
	address string
}

// NewDirectKeySigner creates a signer for the given private key. The address
// is derived once from the public key.
func NewDirectKeySigner(key ed25519.PrivateKey) *DirectKeySigner {
	pub := key.Public().(ed25519.PublicKey)
	return &DirectKeySigner{
		key:     key,
		address: AddressFromPublicKey(pub),
	}
}

func (s *DirectKeySigner) Address() string {
	return s.address
}

func (s *DirectKeySigner) SignTransaction(txBytes []byte) (string, error) {
	return signWithIntent(s.key, intentTransaction, txBytes), nil
}

func (s *DirectKeySigner) SignPersonalMessage(msg []byte) (SignedMessage, error) {
	return SignedMessage{
		Bytes:     base64.StdEncoding.EncodeToString(msg),
		Signature: signWithIntent(s.key, intentPersonalMessage, msg),
	}, nil
}

// signWithIntent hashes intent||data with blake2b-256, signs the digest and
// returns the serialized signature: base64(flag || sig || pubkey).
func signWithIntent(key ed25519.PrivateKey, intent, data []byte) string {
	payload := make([]byte, 0, len(intent)+len(data))
	payload = append(payload, intent...)
	payload = append(payload, data...)
	digest := blake2b.Sum256(payload)

	sig := ed25519.Sign(key, digest[:])
	pub := key.Public().(ed25519.PublicKey)

	serialized := make([]byte, 0, 1+len(sig)+len(pub))
	serialized = append(serialized, SchemeED25519)
	serialized = append(serialized, sig...)
	serialized = append(serialized, pub...)
	return base64.StdEncoding.EncodeToString(serialized)
}
