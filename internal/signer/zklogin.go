package signer

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ZkLoginState is the immutable outcome of a zkLogin authentication run. It
// is constructed once per login and held for the lifetime of the session; a
// fresh login always produces a fresh state.
type ZkLoginState struct {
	// WalletAddress is the zkLogin-derived address. It is precomputed at
	// login and never re-derived.
	WalletAddress string

	// AddressSeed binds the proof to one user+application pairing.
	AddressSeed string

	// MaxEpoch is the chain epoch after which the proof and the ephemeral
	// key stop being accepted for signing.
	MaxEpoch uint64

	// Proof holds the proving service's output, carried opaquely.
	Proof json.RawMessage
}

// ZkLoginSigner signs with the ephemeral keypair produced during login and
// wraps each transaction signature together with the stored proof into the
// composite zkLogin signature the chain verifier accepts. The user's real
// key is never involved.
type ZkLoginSigner struct {
	ephemeral ed25519.PrivateKey
	state     ZkLoginState
}

// NewZkLoginSigner builds a signer from the ephemeral keypair and the state
// produced by a successful zkLogin run.
func NewZkLoginSigner(ephemeral ed25519.PrivateKey, state ZkLoginState) (*ZkLoginSigner, error) {
	if state.WalletAddress == "" {
		return nil, fmt.Errorf("zklogin state has no wallet address")
	}
	if len(state.Proof) == 0 {
		return nil, fmt.Errorf("zklogin state has no proof")
	}
	return &ZkLoginSigner{ephemeral: ephemeral, state: state}, nil
}

func (s *ZkLoginSigner) Address() string {
	return s.state.WalletAddress
}

// zkLoginSignature is the composite signature envelope. The verifier checks
// the ephemeral user signature against the proof, the address seed and the
// epoch bound.
type zkLoginSignature struct {
	Inputs struct {
		ProofPoints json.RawMessage `json:"proofPoints"`
		AddressSeed string          `json:"addressSeed"`
	} `json:"inputs"`
	MaxEpoch      uint64 `json:"maxEpoch"`
	UserSignature string `json:"userSignature"`
}

func (s *ZkLoginSigner) SignTransaction(txBytes []byte) (string, error) {
	userSig := signWithIntent(s.ephemeral, intentTransaction, txBytes)

	var composite zkLoginSignature
	composite.Inputs.ProofPoints = s.state.Proof
	composite.Inputs.AddressSeed = s.state.AddressSeed
	composite.MaxEpoch = s.state.MaxEpoch
	composite.UserSignature = userSig

	raw, err := json.Marshal(composite)
	if err != nil {
		return "", fmt.Errorf("failed to serialize zklogin signature: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// SignPersonalMessage delegates to the ephemeral keypair directly; personal
// messages carry no proof envelope.
func (s *ZkLoginSigner) SignPersonalMessage(msg []byte) (SignedMessage, error) {
	return SignedMessage{
		Bytes:     base64.StdEncoding.EncodeToString(msg),
		Signature: signWithIntent(s.ephemeral, intentPersonalMessage, msg),
	}, nil
}
