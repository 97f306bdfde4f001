package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tetherlab/tether/core/executor"
	"github.com/tetherlab/tether/core/protocol"
)

// Transport carries one request to the executing side and returns its
// response. Implementations are reliable point-to-point calls; retry policy,
// if any, lives here and not in the client.
type Transport interface {
	Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// HTTPTransport sends requests as JSON POSTs to a query endpoint.
type HTTPTransport struct {
	URL    string
	Client *http.Client
}

// NewHTTPTransport creates a transport for the given query endpoint URL.
func NewHTTPTransport(url string) *HTTPTransport {
	return &HTTPTransport{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Send posts the request and decodes the response envelope.
func (t *HTTPTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send query: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("query endpoint returned %d: %s", httpResp.StatusCode, snippet)
	}

	var resp protocol.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// Loopback wires a client directly to an in-process executor. Used for
// tests and single-process deployments. The payload still goes through a
// JSON round trip so loopback and HTTP behave identically.
type Loopback struct {
	Executor *executor.Executor
}

// Send executes the request in process.
func (t *Loopback) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var wireReq protocol.Request
	if err := json.Unmarshal(encoded, &wireReq); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	resp := t.Executor.Execute(ctx, &wireReq)

	reencoded, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var wireResp protocol.Response
	if err := json.Unmarshal(reencoded, &wireResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &wireResp, nil
}
