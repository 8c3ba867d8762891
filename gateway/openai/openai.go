// Package openai adapts the OpenAI Chat Completions API to the
// gateway.Gateway interface using the official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nlip-soln/nlipmesh/gateway"
)

// Options configure the OpenAI gateway adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
	APIKey      string
	BaseURL     string
}

// Gateway wraps the OpenAI Chat Completions API behind gateway.Gateway.
type Gateway struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI gateway using the official client.
func New(optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Gateway{client: &client, opts: opts}
}

// NewFromClient creates a new OpenAI gateway from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0.7,
		MaxTokens:   4096,
		Timeout:     60 * time.Second,
	}
}

// Complete implements gateway.Gateway.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               g.opts.Model,
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxTokens),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", gateway.ErrBackendError)
	}
	return resp.Choices[0].Message.Content, nil
}

// Info implements gateway.Gateway.
func (g *Gateway) Info() gateway.Info {
	return gateway.Info{Provider: "openai", Model: g.opts.Model}
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", gateway.ErrTimeout, err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", gateway.ErrBackendError, err)
	}
	return fmt.Errorf("%w: %v", gateway.ErrBackendUnavailable, err)
}
