package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

// PKCEExchange is the single-use state for one authorization-code flow. The
// verifier never leaves the process; the challenge and nonce are what the
// authorization server sees. The nonce binds the OAuth grant to the
// ephemeral keypair so the resulting token cannot be replayed against a
// different key.
type PKCEExchange struct {
	Verifier  string
	Challenge string
	Nonce     string
}

// NewPKCEExchange generates a fresh verifier/challenge pair (S256) carrying
// the given nonce.
func NewPKCEExchange(nonce string) PKCEExchange {
	verifier := oauth2.GenerateVerifier()
	return PKCEExchange{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
		Nonce:     nonce,
	}
}

// VerifyPKCE reports whether challenge is the S256 commitment of verifier.
func VerifyPKCE(verifier, challenge string) bool {
	h := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(h[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// randomBytes returns n cryptographically secure random bytes.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
