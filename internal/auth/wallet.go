package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/portside-labs/portside-mcp/internal/api"
	"github.com/portside-labs/portside-mcp/internal/log"
	"github.com/portside-labs/portside-mcp/internal/session"
	"github.com/portside-labs/portside-mcp/internal/signer"
)

// ErrNotRegistered is returned when the wallet has no marketplace
// membership. Registration happens out-of-band; retrying the login cannot
// help.
var ErrNotRegistered = errors.New("wallet is not registered with the marketplace")

// WalletAuthenticator logs in with the wallet's own private key by signing a
// server-issued nonce.
type WalletAuthenticator struct {
	client *api.Client
	key    ed25519.PrivateKey
}

// NewWalletAuthenticator creates the direct-key login strategy.
func NewWalletAuthenticator(client *api.Client, key ed25519.PrivateKey) *WalletAuthenticator {
	return &WalletAuthenticator{client: client, key: key}
}

// Login runs one full direct-key login. The steps are strictly sequential:
// the signed message must contain the nonce issued for this attempt, so the
// nonce fetch always precedes message construction.
func (a *WalletAuthenticator) Login(ctx context.Context) (*session.LoginResult, error) {
	sgn := signer.NewDirectKeySigner(a.key)
	address := sgn.Address()

	exists, err := a.client.CheckMember(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("membership check failed: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s — register this address on the marketplace first", ErrNotRegistered, address)
	}

	nonce, err := a.client.RequestNonce(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("nonce request failed: %w", err)
	}

	timestamp := time.Now().UnixMilli()
	message := loginMessage(address, nonce, timestamp)

	signed, err := sgn.SignPersonalMessage([]byte(message))
	if err != nil {
		return nil, fmt.Errorf("failed to sign login message: %w", err)
	}

	token, err := a.client.Login(ctx, api.LoginRequest{
		WalletAddress: address,
		Provider:      api.ProviderWallet,
		Signature:     signed.Signature,
		Timestamp:     timestamp,
		Nonce:         nonce,
		Message:       signed.Bytes,
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	log.LogInfoWithFields("auth", "Wallet login succeeded", map[string]any{
		"address": address,
	})

	return &session.LoginResult{AccessToken: token, Signer: sgn}, nil
}

// loginMessage is the canonical message the wallet signs to prove key
// ownership for this attempt.
func loginMessage(address, nonce string, timestamp int64) string {
	return fmt.Sprintf("Sign in to Portside\n\nAddress: %s\nNonce: %s\nIssued at: %d", address, nonce, timestamp)
}
