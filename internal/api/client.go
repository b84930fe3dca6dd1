// Package api is the HTTP client for the Portside marketplace REST API.
// Responses arrive in a JSON envelope {statusCode, data, metadata}; callers
// only ever see the inner data. The client attaches the current bearer token
// and recovers from a single 401 per logical request by re-running login
// through the session hooks.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/portside-labs/portside-mcp/internal/ioutil"
	"github.com/portside-labs/portside-mcp/internal/log"
)

const maxErrorBodySize = 16 * 1024

// Hooks connect the client to the session coordinator. BeforeRequest runs
// before the first attempt of every authenticated call (lazy login);
// OnUnauthorized runs after a 401 and must leave a fresh token behind.
type Hooks struct {
	BeforeRequest  func(ctx context.Context) error
	OnUnauthorized func(ctx context.Context) error
}

// TokenFunc returns the current bearer token, or "" when no session exists.
type TokenFunc func() string

// Client issues requests against the marketplace API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenFunc
	hooks      Hooks
}

// New creates a client for the given API base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      func() string { return "" },
	}
}

// Bind installs the session hooks and token source. Called once during
// startup wiring; the client never mutates session state itself.
func (c *Client) Bind(token TokenFunc, hooks Hooks) {
	c.token = token
	c.hooks = hooks
}

// MultipartPayload describes a file upload. Content is fully buffered so the
// request can be rebuilt and replayed after a token refresh.
type MultipartPayload struct {
	FieldName string
	FileName  string
	Content   []byte
	Fields    map[string]string
}

// RequestOptions shape a single API call.
type RequestOptions struct {
	Method    string
	Query     url.Values
	Body      any               // JSON-encoded when non-nil
	Multipart *MultipartPayload // mutually exclusive with Body

	// SkipAuth bypasses the session hooks and the bearer header. Used by
	// the login endpoints themselves, which run inside session
	// initialization and must not re-enter it.
	SkipAuth bool
}

// StatusError is returned for any non-2xx response that is not recovered by
// the 401 retry. It carries the upstream status and body for diagnosis.
type StatusError struct {
	StatusCode int
	Body       string
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketplace request %s failed: status %d: %s", e.Path, e.StatusCode, e.Body)
}

// envelope is the marketplace's response wrapper. Pagination metadata is
// passed through untouched; no caller here interprets it.
type envelope[T any] struct {
	StatusCode int             `json:"statusCode"`
	Data       T               `json:"data"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// Do performs one logical request and decodes the envelope's data field.
//
// Retry contract: on the first 401 of an authenticated call the
// OnUnauthorized hook is invoked (invalidate + fresh login) and the identical
// request is re-issued exactly once. A second 401 surfaces as a StatusError
// so a misconfigured credential cannot loop.
func Do[T any](ctx context.Context, c *Client, path string, opts RequestOptions) (T, error) {
	var zero T

	if opts.Method == "" {
		opts.Method = http.MethodGet
	}

	if !opts.SkipAuth && c.hooks.BeforeRequest != nil {
		if err := c.hooks.BeforeRequest(ctx); err != nil {
			return zero, err
		}
	}

	var jsonBody []byte
	if opts.Body != nil {
		var err error
		jsonBody, err = json.Marshal(opts.Body)
		if err != nil {
			return zero, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	resp, err := c.attempt(ctx, path, opts, jsonBody)
	if err != nil {
		return zero, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !opts.SkipAuth {
		resp.Body.Close()
		log.LogInfoWithFields("api", "Received 401, re-authenticating", map[string]any{
			"path": path,
		})
		if c.hooks.OnUnauthorized != nil {
			if err := c.hooks.OnUnauthorized(ctx); err != nil {
				return zero, fmt.Errorf("re-authentication after 401 failed: %w", err)
			}
		}
		resp, err = c.attempt(ctx, path, opts, jsonBody)
		if err != nil {
			return zero, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			defer resp.Body.Close()
			return zero, &StatusError{
				StatusCode: resp.StatusCode,
				Body:       ioutil.ReadLimited(resp.Body, maxErrorBodySize),
				Path:       path,
			}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       ioutil.ReadLimited(resp.Body, maxErrorBodySize),
			Path:       path,
		}
	}

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return env.Data, nil
}

// attempt builds and sends one HTTP request. Bodies are rebuilt from buffered
// bytes on every call, so a retried attempt is byte-identical to the first.
func (c *Client) attempt(ctx context.Context, path string, opts RequestOptions, jsonBody []byte) (*http.Response, error) {
	target := c.baseURL + path
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var body *bytes.Buffer
	contentType := ""
	switch {
	case opts.Multipart != nil:
		body = &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile(opts.Multipart.FieldName, opts.Multipart.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
		if _, err := part.Write(opts.Multipart.Content); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
		for k, v := range opts.Multipart.Fields {
			if err := writer.WriteField(k, v); err != nil {
				return nil, fmt.Errorf("failed to build multipart body: %w", err)
			}
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
		// The writer picks the boundary; Content-Type must come from it.
		contentType = writer.FormDataContentType()
	case jsonBody != nil:
		body = bytes.NewBuffer(jsonBody)
		contentType = "application/json"
	default:
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if !opts.SkipAuth {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace request %s failed: %w", path, err)
	}
	return resp, nil
}
