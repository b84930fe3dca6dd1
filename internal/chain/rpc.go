// Package chain is a minimal JSON-RPC client for the chain fullnode
// gateway. Only the system-state query needed by zkLogin lives here.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/portside-labs/portside-mcp/internal/ioutil"
)

const maxErrorBodySize = 4 * 1024

// Client talks JSON-RPC 2.0 to a fullnode gateway.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a chain client for the given RPC URL.
func New(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC request and unmarshals the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc call %s failed: status %d: %s", method, resp.StatusCode, ioutil.ReadLimited(resp.Body, maxErrorBodySize))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc call %s failed: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to decode rpc result: %w", err)
	}
	return nil
}

// CurrentEpoch returns the chain's current epoch number. The gateway
// reports it as a decimal string.
func (c *Client) CurrentEpoch(ctx context.Context) (uint64, error) {
	var state struct {
		Epoch string `json:"epoch"`
	}
	if err := c.call(ctx, "chain_getSystemState", nil, &state); err != nil {
		return 0, err
	}

	epoch, err := strconv.ParseUint(state.Epoch, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid epoch %q in system state: %w", state.Epoch, err)
	}
	return epoch, nil
}
