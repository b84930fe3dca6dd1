package auth

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// CallbackPath is the path component of the registered redirect URI.
const CallbackPath = "/callback"

// DefaultCaptureTimeout bounds how long we wait for the browser redirect. A
// human has to act, so the window is generous but hard.
const DefaultCaptureTimeout = 5 * time.Minute

// ErrCaptureTimeout is returned when no callback arrives in time.
var ErrCaptureTimeout = errors.New("timed out waiting for oauth callback")

const successPage = `<!DOCTYPE html>
<html><head><title>Portside</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h2>Sign-in complete</h2>
<p>You can close this window and return to your agent.</p>
</body></html>`

const failurePage = `<!DOCTYPE html>
<html><head><title>Portside</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h2>Sign-in failed</h2>
<p>The authorization was not completed. You can close this window.</p>
</body></html>`

// CaptureServer is a transient loopback HTTP listener that captures exactly
// one OAuth authorization code. Its lifecycle is a small state machine:
// Listening, then exactly one of Succeeded, Failed or TimedOut, each closing
// the listener once. Callback hits after the terminal event go nowhere
// because the listener is already down.
type CaptureServer struct {
	listener   net.Listener
	server     *http.Server
	resultCh   chan captureResult
	resultOnce sync.Once
	closeOnce  sync.Once
}

type captureResult struct {
	code string
	err  error
}

// StartCaptureServer binds the loopback listener on the given port. The
// redirect URI is pre-registered against this exact port, so a bind conflict
// is terminal: no alternate port is tried.
func StartCaptureServer(port int) (*CaptureServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind oauth callback port %d (is another login running?): %w", port, err)
	}

	s := &CaptureServer{
		listener: listener,
		resultCh: make(chan captureResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)
	s.server = &http.Server{Handler: mux}

	go func() {
		if serveErr := s.server.Serve(s.listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.resolve(captureResult{err: serveErr})
		}
	}()

	return s, nil
}

// RedirectURI returns the redirect URI this listener serves.
func (s *CaptureServer) RedirectURI() string {
	port := s.listener.Addr().(*net.TCPAddr).Port
	return fmt.Sprintf("http://localhost:%d%s", port, CallbackPath)
}

// WaitForAuthorizationCode blocks until the authorization code arrives, the
// provider reports an error, or the timeout elapses. The listener is closed
// on every path; the server is single-use.
func (s *CaptureServer) WaitForAuthorizationCode(timeout time.Duration) (string, error) {
	defer s.Close()

	select {
	case result := <-s.resultCh:
		return result.code, result.err
	case <-time.After(timeout):
		return "", ErrCaptureTimeout
	}
}

// Close shuts the listener down. Safe to call more than once.
func (s *CaptureServer) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		closeErr = s.server.Close()
	})
	return closeErr
}

func (s *CaptureServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if oauthErr := query.Get("error"); oauthErr != "" {
		if description := query.Get("error_description"); description != "" {
			oauthErr = oauthErr + ": " + description
		}
		writePage(w, http.StatusBadRequest, failurePage)
		s.resolve(captureResult{err: fmt.Errorf("authorization failed: %s", oauthErr)})
		return
	}

	code := query.Get("code")
	if code == "" {
		// Not a relevant callback; leave the state machine untouched.
		http.NotFound(w, r)
		return
	}

	writePage(w, http.StatusOK, successPage)
	s.resolve(captureResult{code: code})
}

// resolve records the first terminal event; later ones are no-ops.
func (s *CaptureServer) resolve(result captureResult) {
	s.resultOnce.Do(func() {
		s.resultCh <- result
	})
}

func writePage(w http.ResponseWriter, status int, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(page))
}
