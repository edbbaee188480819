// Package llm is the narrow model-client surface used by the enrichment step.
package llm

import (
	"context"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the one call enrichment needs. *openai.Client satisfies it, as
// does any OpenAI-compatible adapter or test fake.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures an OpenAI-compatible client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New builds an OpenAI-compatible client. An empty BaseURL uses the OpenAI
// default endpoint.
func New(o Options) *openai.Client {
	cfg := openai.DefaultConfig(o.APIKey)
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}
