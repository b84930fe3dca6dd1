package api

import (
	"context"
	"net/http"
	"net/url"
)

// The auth endpoints run inside session initialization, so every call here
// sets SkipAuth: re-entering the before-request hook from the login path
// would deadlock the single-flight attempt on itself.

// CheckMember reports whether a wallet address has a marketplace membership.
func (c *Client) CheckMember(ctx context.Context, address string) (bool, error) {
	query := url.Values{}
	query.Set("address", address)
	data, err := Do[struct {
		Exists bool `json:"exists"`
	}](ctx, c, "/auth/members", RequestOptions{
		Query:    query,
		SkipAuth: true,
	})
	if err != nil {
		return false, err
	}
	return data.Exists, nil
}

// RequestNonce issues a single-use login nonce bound to the address. A fresh
// nonce is fetched per login attempt; nonces are never reused client-side.
func (c *Client) RequestNonce(ctx context.Context, address string) (string, error) {
	data, err := Do[struct {
		Nonce string `json:"nonce"`
	}](ctx, c, "/auth/nonce", RequestOptions{
		Method:   http.MethodPost,
		Body:     map[string]string{"walletAddress": address},
		SkipAuth: true,
	})
	if err != nil {
		return "", err
	}
	return data.Nonce, nil
}

// LoginRequest is the login endpoint payload. The WALLET provider fills the
// signature fields; the GOOGLE provider proves identity out-of-band and only
// carries address and subject.
type LoginRequest struct {
	WalletAddress string `json:"walletAddress"`
	Provider      string `json:"provider"`
	Signature     string `json:"signature,omitempty"`
	Timestamp     int64  `json:"timestamp,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
	Message       string `json:"message,omitempty"`
	Subject       string `json:"subject,omitempty"`
}

// Login exchanges a proven identity for a session access token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	data, err := Do[struct {
		AccessToken string `json:"accessToken"`
	}](ctx, c, "/auth/login", RequestOptions{
		Method:   http.MethodPost,
		Body:     req,
		SkipAuth: true,
	})
	if err != nil {
		return "", err
	}
	return data.AccessToken, nil
}

// Salt exchanges an OAuth identity token for the per-user zkLogin salt.
func (c *Client) Salt(ctx context.Context, idToken string) (SaltResponse, error) {
	return Do[SaltResponse](ctx, c, "/auth/salt", RequestOptions{
		Method:   http.MethodPost,
		Body:     map[string]string{"token": idToken},
		SkipAuth: true,
	})
}
