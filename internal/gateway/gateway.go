// Package gateway is a minimal JSON-RPC 2.0 client for the agent
// runtime's gateway process. skiff only observes the gateway; it never
// manages it.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

const defaultTimeout = 5 * time.Second

// Caller issues a single RPC call. result, when non-nil, receives the
// decoded result object.
type Caller interface {
	Call(ctx context.Context, method string, params, result any) error
}

// Client talks JSON-RPC 2.0 over HTTP POST.
type Client struct {
	url        string
	httpClient *http.Client
	seq        atomic.Uint64
}

// New creates a client for the gateway at url.
func New(url string) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
}

// Call sends one request and decodes the result.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.seq.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if result != nil && len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return nil
}

// Status is the dashboard's view of the gateway.
type Status struct {
	Reachable     bool   `json:"reachable"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptimeSeconds,omitempty"`
	Agents        int    `json:"agents,omitempty"`
	Error         string `json:"error,omitempty"`
}

type statusResult struct {
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Agents        int    `json:"agents"`
}

// Probe asks the gateway for its status. An unreachable or erroring
// gateway degrades to Reachable=false with the error text; Probe never
// fails.
func Probe(ctx context.Context, c Caller) Status {
	var res statusResult
	if err := c.Call(ctx, "status", nil, &res); err != nil {
		return Status{Reachable: false, Error: err.Error()}
	}
	return Status{
		Reachable:     true,
		Version:       res.Version,
		UptimeSeconds: res.UptimeSeconds,
		Agents:        res.Agents,
	}
}
