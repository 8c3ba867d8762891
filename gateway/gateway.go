// Package gateway defines the uniform synchronous interface to a backend
// text-completion model. All provider differences (Ollama, OpenAI,
// Anthropic) are hidden behind the Gateway interface; callers see a prompt
// in, a completion out, and one of three transport-level failure classes.
//
// No retries are performed here. Callers that want retry-with-backoff wrap
// the gateway with their own policy.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

var (
	// ErrBackendUnavailable indicates the remote endpoint could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendError indicates the backend returned a non-success response.
	ErrBackendError = errors.New("backend error")
	// ErrTimeout indicates no response arrived within the configured duration.
	ErrTimeout = errors.New("backend timeout")
)

// Info contains metadata about a gateway implementation.
type Info struct {
	Provider string `json:"provider"` // "ollama", "openai", "anthropic", "mock"
	Model    string `json:"model"`
}

// Gateway is the minimal interface to a text-completion backend.
type Gateway interface {
	// Complete sends the prompt and returns the completion text. Failures
	// are classified as ErrBackendUnavailable, ErrBackendError or
	// ErrTimeout (wrapped; test with errors.Is).
	Complete(ctx context.Context, prompt string) (string, error)

	// Info returns metadata about the backend behind this gateway.
	Info() Info
}

// Throttled wraps a gateway with a client-side rate limit. Complete blocks
// until the limiter grants a slot or the context expires.
type Throttled struct {
	inner   Gateway
	limiter *rate.Limiter
}

// NewThrottled creates a rate-limited gateway allowing perSecond calls with
// burst 1.
func NewThrottled(inner Gateway, perSecond float64) *Throttled {
	return &Throttled{inner: inner, limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Complete implements Gateway.
func (t *Throttled) Complete(ctx context.Context, prompt string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return t.inner.Complete(ctx, prompt)
}

// Info implements Gateway.
func (t *Throttled) Info() Info { return t.inner.Info() }

// Mock is a lightweight in-memory Gateway useful for tests and examples.
// Responses are matched by exact prompt; unmatched prompts either invoke the
// fallback function or echo a canned reply.
type Mock struct {
	info      Info
	responses map[string]string
	fallback  func(prompt string) (string, error)
}

// NewMock constructs a Mock gateway.
func NewMock(model string) *Mock {
	return &Mock{
		info:      Info{Provider: "mock", Model: model},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *Mock) AddResponse(prompt, response string) { m.responses[prompt] = response }

// SetFallback installs a function invoked for prompts without a canned response.
func (m *Mock) SetFallback(fn func(prompt string) (string, error)) { m.fallback = fn }

// Complete implements Gateway.
func (m *Mock) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if resp, ok := m.responses[prompt]; ok {
		return resp, nil
	}
	if m.fallback != nil {
		return m.fallback(prompt)
	}
	return fmt.Sprintf("Mock response to: %s", prompt), nil
}

// Info implements Gateway.
func (m *Mock) Info() Info { return m.info }
