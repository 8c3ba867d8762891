// Package anthropic adapts the Anthropic Messages API to the gateway.Gateway
// interface using the official SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nlip-soln/nlipmesh/gateway"
)

// Options configure the Anthropic gateway adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
	APIKey      string
}

// Gateway wraps the Anthropic Messages API behind gateway.Gateway.
type Gateway struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic gateway using the official client.
func New(optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)
	return &Gateway{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic gateway from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
		Timeout:     60 * time.Second,
	}
}

// Complete implements gateway.Gateway.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       g.opts.Model,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: anthropic.Float(g.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classify(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text, nil
}

// Info implements gateway.Gateway.
func (g *Gateway) Info() gateway.Info {
	return gateway.Info{Provider: "anthropic", Model: string(g.opts.Model)}
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", gateway.ErrTimeout, err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", gateway.ErrBackendError, err)
	}
	return fmt.Errorf("%w: %v", gateway.ErrBackendUnavailable, err)
}
