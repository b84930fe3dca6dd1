package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/portside-labs/portside-mcp/internal/api"
	"github.com/portside-labs/portside-mcp/internal/session"
	"github.com/portside-labs/portside-mcp/internal/signer"
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

func writeEnvelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{"statusCode": 200, "data": data})
	require.NoError(t, err)
}

// fakeMarketplace implements the auth endpoints and records traffic.
type fakeMarketplace struct {
	t          *testing.T
	registered bool
	nonce      string
	token      string

	nonceCalls atomic.Int64
	loginCalls atomic.Int64
	lastLogin  api.LoginRequest
	lastAuth   string // Authorization header of the last non-auth request
}

func (f *fakeMarketplace) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/members", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(f.t, w, map[string]any{"exists": f.registered})
	})
	mux.HandleFunc("POST /auth/nonce", func(w http.ResponseWriter, r *http.Request) {
		f.nonceCalls.Add(1)
		writeEnvelope(f.t, w, map[string]any{"nonce": f.nonce})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.loginCalls.Add(1)
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.lastLogin))
		writeEnvelope(f.t, w, map[string]any{"accessToken": f.token})
	})
	mux.HandleFunc("GET /collections", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		writeEnvelope(f.t, w, []api.Collection{})
	})
	return mux
}

func TestWalletAuthenticator(t *testing.T) {
	t.Run("unregistered wallet fails without nonce or login calls", func(t *testing.T) {
		fake := &fakeMarketplace{t: t, registered: false}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		authn := NewWalletAuthenticator(api.New(srv.URL), testKey(t))
		_, err := authn.Login(context.Background())

		require.ErrorIs(t, err, ErrNotRegistered)
		address := signer.NewDirectKeySigner(testKey(t)).Address()
		assert.Contains(t, err.Error(), address)
		assert.Equal(t, int64(0), fake.nonceCalls.Load())
		assert.Equal(t, int64(0), fake.loginCalls.Load())
	})

	t.Run("login signs the issued nonce", func(t *testing.T) {
		fake := &fakeMarketplace{t: t, registered: true, nonce: "n1", token: "tok1"}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		key := testKey(t)
		authn := NewWalletAuthenticator(api.New(srv.URL), key)
		result, err := authn.Login(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "tok1", result.AccessToken)
		assert.Equal(t, signer.NewDirectKeySigner(key).Address(), result.Signer.Address())

		login := fake.lastLogin
		assert.Equal(t, api.ProviderWallet, login.Provider)
		assert.Equal(t, "n1", login.Nonce)
		assert.NotZero(t, login.Timestamp)

		// The signed message must carry the nonce issued for this attempt
		// and verify against the wallet's public key.
		msg, err := base64.StdEncoding.DecodeString(login.Message)
		require.NoError(t, err)
		assert.Contains(t, string(msg), "Nonce: n1")
		assert.Contains(t, string(msg), fmt.Sprintf("Issued at: %d", login.Timestamp))

		sig, err := base64.StdEncoding.DecodeString(login.Signature)
		require.NoError(t, err)
		require.Len(t, sig, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
		digest := blake2b.Sum256(append([]byte{0x03, 0x00, 0x00}, msg...))
		pub := key.Public().(ed25519.PublicKey)
		assert.True(t, ed25519.Verify(pub, digest[:], sig[1:1+ed25519.SignatureSize]))
	})

	t.Run("next request carries the session bearer token", func(t *testing.T) {
		fake := &fakeMarketplace{t: t, registered: true, nonce: "n1", token: "tok1"}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		client := api.New(srv.URL)
		sess := session.New(NewWalletAuthenticator(client, testKey(t)).Login)
		client.Bind(sess.Token, api.Hooks{
			BeforeRequest: sess.EnsureInit,
			OnUnauthorized: func(ctx context.Context) error {
				sess.Invalidate()
				return sess.EnsureInit(ctx)
			},
		})

		_, err := client.SearchCollections(context.Background(), "", 0)
		require.NoError(t, err)
		assert.Equal(t, "Bearer tok1", fake.lastAuth)
		assert.True(t, strings.HasPrefix(sess.Signer().Address(), "0x"))
	})
}
