// Package ollama provides a gateway.Gateway implementation backed by an
// Ollama server's generate API. It speaks plain HTTP; no SDK is involved.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nlip-soln/nlipmesh/gateway"
)

// Options configure the Ollama gateway.
type Options struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Gateway calls an Ollama server's /api/generate endpoint.
type Gateway struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
}

// New creates an Ollama gateway.
func New(optFns ...func(o *Options)) *Gateway {
	opts := Options{
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
		Timeout: 60 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Gateway{
		baseURL: opts.BaseURL,
		model:   opts.Model,
		timeout: opts.Timeout,
		client:  client,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete implements gateway.Gateway.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", gateway.ErrBackendError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", gateway.ErrBackendError, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", gateway.ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", gateway.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", gateway.ErrBackendError, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", gateway.ErrBackendError, resp.StatusCode, truncate(data, 200))
	}

	var gen generateResponse
	if err := json.Unmarshal(data, &gen); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", gateway.ErrBackendError, err)
	}
	return gen.Response, nil
}

// Info implements gateway.Gateway.
func (g *Gateway) Info() gateway.Info {
	return gateway.Info{Provider: "ollama", Model: g.model}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
