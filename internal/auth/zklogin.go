package auth

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/portside-labs/portside-mcp/internal/api"
	"github.com/portside-labs/portside-mcp/internal/chain"
	"github.com/portside-labs/portside-mcp/internal/ioutil"
	"github.com/portside-labs/portside-mcp/internal/log"
	"github.com/portside-labs/portside-mcp/internal/session"
	"github.com/portside-labs/portside-mcp/internal/signer"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// maxEpochWindow is how many epochs past the current one the ephemeral key
// and proof remain valid. A small window bounds the exposure of a leaked
// ephemeral key.
const maxEpochWindow = 10

const maxUpstreamBodySize = 16 * 1024

// ZkLoginConfig configures the browser-based login strategy.
type ZkLoginConfig struct {
	ClientID     string
	ClientSecret string
	ProverURL    string

	// Port is the loopback callback port; the redirect URI is registered
	// against exactly this port.
	Port int

	// CaptureTimeout bounds the wait for the browser redirect. Zero means
	// DefaultCaptureTimeout.
	CaptureTimeout time.Duration

	// Endpoint overrides the OAuth provider endpoint (tests). Zero value
	// means Google.
	Endpoint oauth2.Endpoint

	// OpenBrowser overrides how the authorization URL is opened (tests).
	OpenBrowser func(url string) error
}

// ZkLoginAuthenticator logs in through the OAuth provider and a
// zero-knowledge proving service. A successful run yields both a session
// token and a zkLogin signer bound to a fresh ephemeral keypair.
type ZkLoginAuthenticator struct {
	client     *api.Client
	chain      *chain.Client
	cfg        ZkLoginConfig
	httpClient *http.Client
}

// NewZkLoginAuthenticator creates the zkLogin strategy.
func NewZkLoginAuthenticator(client *api.Client, chainClient *chain.Client, cfg ZkLoginConfig) *ZkLoginAuthenticator {
	if cfg.CaptureTimeout == 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = google.Endpoint
	}
	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = openBrowser
	}
	return &ZkLoginAuthenticator{
		client:     client,
		chain:      chainClient,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// idTokenClaims are the identity-token claims the flow consumes.
type idTokenClaims struct {
	Subject  string
	Issuer   string
	Audience string
	Nonce    string
}

// Login runs one full zkLogin attempt. Every failure is terminal for the
// attempt and retains nothing: a retry restarts from the epoch query with a
// fresh ephemeral key and nonce.
func (a *ZkLoginAuthenticator) Login(ctx context.Context) (*session.LoginResult, error) {
	epoch, err := a.chain.CurrentEpoch(ctx)
	if err != nil {
		return nil, fmt.Errorf("epoch query failed: %w", err)
	}
	maxEpoch := epoch + maxEpochWindow

	ephPub, ephPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral keypair: %w", err)
	}
	randomness, err := NewRandomness()
	if err != nil {
		return nil, err
	}
	exchange := NewPKCEExchange(ZkNonce(ephPub, maxEpoch, randomness))

	idToken, claims, err := a.authorize(ctx, exchange)
	if err != nil {
		return nil, err
	}

	saltResp, err := a.client.Salt(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("salt exchange failed: %w", err)
	}

	seed := AddressSeed(saltResp.Salt, "sub", claims.Subject, claims.Audience)
	address := ZkAddress(claims.Issuer, seed)

	proof, err := a.prove(ctx, proofRequest{
		JWT:                        idToken,
		Salt:                       saltResp.Salt,
		ExtendedEphemeralPublicKey: ExtendedEphemeralPublicKey(ephPub),
		MaxEpoch:                   maxEpoch,
		JWTRandomness:              randomness,
		KeyClaimName:               "sub",
	})
	if err != nil {
		return nil, err
	}

	zkSigner, err := signer.NewZkLoginSigner(ephPriv, signer.ZkLoginState{
		WalletAddress: address,
		AddressSeed:   seed,
		MaxEpoch:      maxEpoch,
		Proof:         proof,
	})
	if err != nil {
		return nil, err
	}

	// Identity is already proven by the chain of custody above; the login
	// endpoint only needs the address and subject.
	token, err := a.client.Login(ctx, api.LoginRequest{
		WalletAddress: address,
		Provider:      api.ProviderGoogle,
		Subject:       claims.Subject,
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	log.LogInfoWithFields("auth", "zkLogin succeeded", map[string]any{
		"address":  address,
		"maxEpoch": maxEpoch,
	})

	return &session.LoginResult{AccessToken: token, Signer: zkSigner}, nil
}

// authorize runs the browser PKCE flow and returns the identity token with
// its parsed claims.
func (a *ZkLoginAuthenticator) authorize(ctx context.Context, exchange PKCEExchange) (string, idTokenClaims, error) {
	capture, err := StartCaptureServer(a.cfg.Port)
	if err != nil {
		return "", idTokenClaims{}, err
	}
	defer capture.Close()

	conf := oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		RedirectURL:  capture.RedirectURI(),
		Scopes:       []string{"openid", "email"},
		Endpoint:     a.cfg.Endpoint,
	}

	state, err := randomBytes(16)
	if err != nil {
		return "", idTokenClaims{}, err
	}
	authURL := conf.AuthCodeURL(fmt.Sprintf("%x", state),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.SetAuthURLParam("code_challenge", exchange.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("nonce", exchange.Nonce),
	)

	log.LogInfoWithFields("auth", "Waiting for browser sign-in", map[string]any{
		"url": authURL,
	})
	if err := a.cfg.OpenBrowser(authURL); err != nil {
		// Not fatal: the URL above can be opened by hand.
		log.LogWarnWithFields("auth", "Could not open browser", map[string]any{
			"error": err.Error(),
		})
	}

	code, err := capture.WaitForAuthorizationCode(a.cfg.CaptureTimeout)
	if err != nil {
		return "", idTokenClaims{}, err
	}

	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(exchange.Verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", idTokenClaims{}, fmt.Errorf("token exchange failed: status %d: %s",
				retrieveErr.Response.StatusCode, string(retrieveErr.Body))
		}
		return "", idTokenClaims{}, fmt.Errorf("token exchange failed: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return "", idTokenClaims{}, fmt.Errorf("token response is missing an identity token")
	}

	claims, err := parseIDToken(idToken)
	if err != nil {
		return "", idTokenClaims{}, err
	}
	if claims.Nonce != exchange.Nonce {
		return "", idTokenClaims{}, fmt.Errorf("identity token nonce does not match this login attempt")
	}
	return idToken, claims, nil
}

// parseIDToken extracts the claims the flow needs. The parse is unverified
// on purpose: signature verification is done by the salt backend and the
// proving service, both of which reject forged tokens.
func parseIDToken(idToken string) (idTokenClaims, error) {
	tok, err := jwt.ParseSigned(idToken, []jose.SignatureAlgorithm{jose.RS256, jose.ES256})
	if err != nil {
		return idTokenClaims{}, fmt.Errorf("failed to parse identity token: %w", err)
	}

	var std jwt.Claims
	var extra struct {
		Nonce string `json:"nonce"`
	}
	if err := tok.UnsafeClaimsWithoutVerification(&std, &extra); err != nil {
		return idTokenClaims{}, fmt.Errorf("failed to read identity token claims: %w", err)
	}
	if std.Subject == "" {
		return idTokenClaims{}, fmt.Errorf("identity token has no subject claim")
	}

	audience := ""
	if len(std.Audience) > 0 {
		audience = std.Audience[0]
	}
	return idTokenClaims{
		Subject:  std.Subject,
		Issuer:   std.Issuer,
		Audience: audience,
		Nonce:    extra.Nonce,
	}, nil
}

// proofRequest is the proving service payload.
type proofRequest struct {
	JWT                        string `json:"jwt"`
	Salt                       string `json:"salt"`
	ExtendedEphemeralPublicKey string `json:"extendedEphemeralPublicKey"`
	MaxEpoch                   uint64 `json:"maxEpoch"`
	JWTRandomness              string `json:"jwtRandomness"`
	KeyClaimName               string `json:"keyClaimName"`
}

// prove calls the external proving service and returns its output opaquely.
func (a *ZkLoginAuthenticator) prove(ctx context.Context, req proofRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.ProverURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create proof request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("proving service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("proving service call failed: status %d: %s",
			resp.StatusCode, ioutil.ReadLimited(resp.Body, maxUpstreamBodySize))
	}

	proof, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read proof response: %w", err)
	}
	if !json.Valid(proof) {
		return nil, fmt.Errorf("proving service returned invalid JSON")
	}
	return proof, nil
}
