package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/freshcart/cartsense-go/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

// Client is an OpenAI-compatible generation client.
//
// It implements the llm.Provider interface on top of the OpenAI chat
// completion API. Any OpenAI-compatible gateway works by setting BaseURL.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for the OpenAI generation client.
//
// APIKey: API key (required)
// Model: Model name to use, e.g. "gpt-4o-mini"
// BaseURL: API base URL, defaults to the OpenAI official address
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient creates a new OpenAI generation client.
//
// Args:
//   - cfg: Configuration containing APIKey, Model, and BaseURL
//
// Returns:
//   - *Client: Client instance
//   - error: Returns an error if the configuration is invalid
func NewClient(cfg *Config) (*Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	client := openai.NewClientWithConfig(config)

	return &Client{
		client: client,
		model:  cfg.Model,
	}, nil
}

// Generate generates text based on the prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	messages := []llm.Message{
		{Role: "user", Content: prompt},
	}
	return c.GenerateWithMessages(ctx, messages, opts...)
}

// GenerateWithMessages generates text using message history.
//
// Rate-limit responses (HTTP 429) are returned wrapped in llm.ErrRateLimited
// and quota/budget responses (HTTP 402) wrapped in llm.ErrQuotaExhausted so
// callers can distinguish them from ordinary transport failures.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - messages: Message history list, each message contains role and content
//   - opts: Optional generation parameters (temperature, max_tokens, top_p, etc.)
//
// Returns:
//   - string: Generated text content
//   - error: Returns an error if generation fails
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("generation failed: no choices returned from API")
	}

	return resp.Choices[0].Message.Content, nil
}

// classifyError maps API errors onto the llm failure sentinels.
//
// Well-formed error bodies surface as *openai.APIError; gateways that
// answer with a bare status and a non-JSON body surface as
// *openai.RequestError. Both carry the HTTP status used to classify.
func classifyError(err error) error {
	var status int
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", llm.ErrRateLimited, err)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %v", llm.ErrQuotaExhausted, err)
	}
	return err
}

// Close closes the client connection.
//
// The underlying SDK client does not require explicit closing; this method
// is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}
