// Package config holds the startup configuration for portside-mcp.
// Everything is resolved and validated exactly once, before any component
// is constructed; the rest of the process treats the Config as immutable.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// Network selects which deployment of the marketplace and chain to talk to.
type Network string

const (
	NetworkTestnet Network = "testnet"
	NetworkMainnet Network = "mainnet"
)

// Endpoints is the resolved endpoint set for a network.
type Endpoints struct {
	APIBaseURL string
	ProverURL  string
	RPCURL     string
	ChainID    string
}

var networkEndpoints = map[Network]Endpoints{
	NetworkTestnet: {
		APIBaseURL: "https://api.testnet.portside.io/v1",
		ProverURL:  "https://prover.testnet.portside.io/v1",
		RPCURL:     "https://rpc.testnet.portside.io",
		ChainID:    "portside:testnet",
	},
	NetworkMainnet: {
		APIBaseURL: "https://api.portside.io/v1",
		ProverURL:  "https://prover.portside.io/v1",
		RPCURL:     "https://rpc.portside.io",
		ChainID:    "portside:mainnet",
	},
}

// DefaultOAuthPort is the loopback port the zkLogin redirect URI is
// registered against. It cannot be changed without re-registering the
// redirect URI with the OAuth provider.
const DefaultOAuthPort = 8642

// Config is the validated process configuration.
type Config struct {
	Network   Network
	Endpoints Endpoints

	// WalletKey is the direct-key credential (hex or base64 ed25519 seed).
	// When set, the wallet login strategy is used.
	WalletKey Secret

	// GoogleClientID/GoogleClientSecret configure the zkLogin strategy,
	// used when no wallet key is present.
	GoogleClientID     string
	GoogleClientSecret Secret

	// OAuthPort is the local port for the zkLogin OAuth callback.
	OAuthPort int
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	network := Network(envOr("PORTSIDE_NETWORK", string(NetworkTestnet)))
	endpoints, ok := networkEndpoints[network]
	if !ok {
		return nil, fmt.Errorf("invalid network %q: must be %q or %q", network, NetworkTestnet, NetworkMainnet)
	}

	cfg := &Config{
		Network:            network,
		Endpoints:          endpoints,
		WalletKey:          Secret(os.Getenv("PORTSIDE_WALLET_KEY")),
		GoogleClientID:     os.Getenv("PORTSIDE_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: Secret(os.Getenv("PORTSIDE_GOOGLE_CLIENT_SECRET")),
		OAuthPort:          DefaultOAuthPort,
	}

	if port := os.Getenv("PORTSIDE_OAUTH_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid PORTSIDE_OAUTH_PORT %q", port)
		}
		cfg.OAuthPort = n
	}

	if cfg.WalletKey == "" && cfg.GoogleClientID == "" {
		return nil, fmt.Errorf("no login strategy configured: set PORTSIDE_WALLET_KEY for wallet login or PORTSIDE_GOOGLE_CLIENT_ID for zkLogin")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
