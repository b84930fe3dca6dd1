package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/portside-labs/portside-mcp/internal/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSigner struct{ addr string }

func (s stubSigner) Address() string { return s.addr }

func (s stubSigner) SignTransaction([]byte) (string, error) { return "sig", nil }

func (s stubSigner) SignPersonalMessage([]byte) (signer.SignedMessage, error) {
	return signer.SignedMessage{}, nil
}

func TestSession(t *testing.T) {
	t.Run("starts uninitialized", func(t *testing.T) {
		s := New(func(ctx context.Context) (*LoginResult, error) {
			t.Fatal("login must not run before EnsureInit")
			return nil, nil
		})
		assert.Empty(t, s.Token())
		assert.Nil(t, s.Signer())
	})

	t.Run("concurrent callers share one login", func(t *testing.T) {
		var calls atomic.Int64
		release := make(chan struct{})
		s := New(func(ctx context.Context) (*LoginResult, error) {
			calls.Add(1)
			<-release
			return &LoginResult{AccessToken: "tok", Signer: stubSigner{addr: "0xabc"}}, nil
		})

		const n = 16
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.EnsureInit(context.Background())
			}(i)
		}

		// Let every caller reach the in-flight attempt before it completes.
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int64(1), calls.Load())
		for _, err := range errs {
			assert.NoError(t, err)
		}
		assert.Equal(t, "tok", s.Token())
		assert.Equal(t, "0xabc", s.Signer().Address())
	})

	t.Run("initialized session short-circuits", func(t *testing.T) {
		var calls atomic.Int64
		s := New(func(ctx context.Context) (*LoginResult, error) {
			calls.Add(1)
			return &LoginResult{AccessToken: "tok", Signer: stubSigner{}}, nil
		})

		require.NoError(t, s.EnsureInit(context.Background()))
		require.NoError(t, s.EnsureInit(context.Background()))
		require.NoError(t, s.EnsureInit(context.Background()))
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("failure leaves session retryable", func(t *testing.T) {
		var calls atomic.Int64
		boom := errors.New("provider unreachable")
		s := New(func(ctx context.Context) (*LoginResult, error) {
			if calls.Add(1) == 1 {
				return nil, boom
			}
			return &LoginResult{AccessToken: "tok2", Signer: stubSigner{}}, nil
		})

		err := s.EnsureInit(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Empty(t, s.Token())
		assert.Nil(t, s.Signer())

		require.NoError(t, s.EnsureInit(context.Background()))
		assert.Equal(t, "tok2", s.Token())
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("invalidate forces a fresh login", func(t *testing.T) {
		var calls atomic.Int64
		s := New(func(ctx context.Context) (*LoginResult, error) {
			calls.Add(1)
			return &LoginResult{AccessToken: "tok", Signer: stubSigner{}}, nil
		})

		require.NoError(t, s.EnsureInit(context.Background()))
		s.Invalidate()
		assert.Empty(t, s.Token())
		assert.Nil(t, s.Signer())

		require.NoError(t, s.EnsureInit(context.Background()))
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("login survives the first caller's cancellation", func(t *testing.T) {
		release := make(chan struct{})
		s := New(func(ctx context.Context) (*LoginResult, error) {
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &LoginResult{AccessToken: "tok", Signer: stubSigner{}}, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.EnsureInit(ctx) }()

		time.Sleep(20 * time.Millisecond)
		cancel()
		close(release)

		// The attempt itself keeps going; its result is stored even though
		// the caller that started it already gave up.
		require.NoError(t, <-done)
		assert.Equal(t, "tok", s.Token())
	})
}
