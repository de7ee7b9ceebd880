// Package gpt provides the chat-completions client and the reply agent
// that turns a user utterance plus conversation history into Julian's
// spoken answer.
package gpt

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

// Completion defaults.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.6
	DefaultMaxTokens   = 1000
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel overrides the default model name.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) { c.maxTokens = n }
}

// WithHTTPTimeout sets the per-request timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.retries = n }
}

// WithHTTPClient replaces the HTTP client (proxies, tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	retries     int
	http        *http.Client
	log         *logger.Logger
}

// NewClient creates a chat client.
//   - baseURL: API root, e.g. "https://api.openai.com/v1/". Empty uses the
//     OpenAI default.
//   - apiKey: sent both as a bearer token and as the "api-key" header so
//     Azure-style gateways accept it.
func NewClient(baseURL, apiKey string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		model:       DefaultModel,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		timeout:     30 * time.Second,
		retries:     1,
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHeader("api-key", apiKey),
		option.WithRequestTimeout(c.timeout),
		option.WithMaxRetries(c.retries),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	if c.http != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.http))
	}
	c.api = openai.NewClient(reqOpts...)
	return c
}

// Chat sends the messages and returns the assistant's reply text.
func (c *Client) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:    toParams(messages),
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
	}

	c.log.Debug("gpt: chat %s (%d messages)", c.model, len(messages))

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("gpt: request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("gpt: no choices: %w", domain.ErrEmptyReply)
	}

	reply := resp.Choices[0].Message.Content
	c.log.Debug("gpt: reply (%d chars): %s", len(reply), truncate(reply, 120))
	return reply, nil
}

func toParams(messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
