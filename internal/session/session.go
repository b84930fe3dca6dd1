// Package session owns the process-wide login session: the marketplace
// access token and the signer produced by a successful authenticator run.
// Initialization is lazy and single-flight; the API client triggers it
// through hooks but never mutates session state directly.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/portside-labs/portside-mcp/internal/log"
	"github.com/portside-labs/portside-mcp/internal/signer"
	"golang.org/x/sync/singleflight"
)

// LoginResult is what an authenticator produces: a session token and a
// ready-to-use signer.
type LoginResult struct {
	AccessToken string
	Signer      signer.Signer
}

// LoginFunc runs one full authentication attempt.
type LoginFunc func(ctx context.Context) (*LoginResult, error)

// Session coordinates login. Exactly one authenticator run is active at any
// time: concurrent EnsureInit callers join the in-flight attempt instead of
// starting their own.
type Session struct {
	login LoginFunc

	group singleflight.Group // Deduplicates concurrent login attempts

	mu          sync.RWMutex
	initialized bool
	token       string
	signer      signer.Signer
}

// New creates an empty session that will authenticate with login on first use.
func New(login LoginFunc) *Session {
	return &Session{login: login}
}

// EnsureInit makes sure a login has completed. Idempotent and
// concurrency-safe: if the session is initialized it returns immediately; if
// an attempt is in flight the caller waits for that same attempt; otherwise
// it starts one. A failed attempt propagates its error to every waiter and
// leaves the session uninitialized so a later call retries from scratch.
func (s *Session) EnsureInit(ctx context.Context) error {
	s.mu.RLock()
	done := s.initialized
	s.mu.RUnlock()
	if done {
		return nil
	}

	// The attempt must not die with the first caller that gives up: later
	// joiners are still waiting on it. Detach cancellation, keep values.
	loginCtx := context.WithoutCancel(ctx)

	_, err, _ := s.group.Do("login", func() (any, error) {
		// Double-check inside singleflight: a caller that raced the
		// completion of the previous attempt needs no new login.
		s.mu.RLock()
		done := s.initialized
		s.mu.RUnlock()
		if done {
			return nil, nil
		}

		result, err := s.login(loginCtx)
		if err != nil {
			return nil, fmt.Errorf("login failed: %w", err)
		}

		s.mu.Lock()
		s.token = result.AccessToken
		s.signer = result.Signer
		s.initialized = true
		s.mu.Unlock()

		log.LogInfoWithFields("session", "Session initialized", map[string]any{
			"address": result.Signer.Address(),
		})
		return nil, nil
	})
	return err
}

// Invalidate tears the session down after an authorization failure. The next
// EnsureInit runs a fresh login.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.initialized = false
	s.token = ""
	s.signer = nil
	s.mu.Unlock()

	log.LogInfoWithFields("session", "Session invalidated", nil)
}

// Token returns the current access token, or "" before initialization.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Signer returns the signer produced at login, or nil before initialization.
func (s *Session) Signer() signer.Signer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer
}
