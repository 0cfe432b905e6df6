// Package completion sends a transcript to an OpenAI-compatible chat
// completion endpoint and returns the reply text.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/realestate-assistant/internal/domain"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultBaseURL is Groq's OpenAI-compatible API root.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the model every request is sent to.
	DefaultModel = "llama-3.3-70b-versatile"
	// DefaultTemperature is the sampling temperature for every request.
	DefaultTemperature = 0.7

	// ErrorPrefix marks reply text that stands in for a failed completion.
	ErrorPrefix = "❌ Error: "
)

var (
	errNoChoices       = errors.New("no choices in response")
	errEmptyCompletion = errors.New("empty completion")
	errMissingAPIKey   = errors.New("API key is required")
)

// chatAPI is the subset of the openai-go chat service used here.
type chatAPI interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Config holds client construction settings.
type Config struct {
	APIKey     string
	BaseURL    string        // Optional: defaults to DefaultBaseURL
	Timeout    time.Duration // Optional: 0 waits for the transport
	HTTPClient *http.Client  // Optional
}

// Client issues one chat completion per call. It holds no per-conversation
// state and is safe for concurrent use.
type Client struct {
	api         chatAPI
	model       string
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates a Client. The API key must already be resolved.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	oc := openai.NewClient(opts...)
	return newWithAPI(&oc.Chat.Completions, cfg.Timeout, logger), nil
}

func newWithAPI(api chatAPI, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:         api,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		timeout:     timeout,
		logger:      logger,
	}
}

// Model returns the model identifier requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Complete returns the assistant reply for transcript, or an ErrorPrefix
// string describing why the request failed. It never returns an error.
func (c *Client) Complete(ctx context.Context, transcript []domain.Message) string {
	return c.CompleteResult(ctx, transcript).Text()
}

// CompleteResult is Complete with the outcome kept typed.
func (c *Client) CompleteResult(ctx context.Context, transcript []domain.Message) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    convertMessages(transcript),
		Temperature: openai.Float(c.temperature),
	}

	start := time.Now()
	resp, err := c.api.New(ctx, params)
	if err != nil {
		c.logger.WarnContext(ctx, "chat completion failed",
			"model", c.model,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return Result{Err: err}
	}
	if len(resp.Choices) == 0 {
		return Result{Err: errNoChoices}
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return Result{Err: errEmptyCompletion}
	}

	c.logger.DebugContext(ctx, "chat completion finished",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
	)
	return Result{Content: content}
}

func convertMessages(msgs []domain.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case domain.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case domain.RoleUser:
			result = append(result, openai.UserMessage(msg.Content))
		case domain.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		}
	}
	return result
}

// FormatError renders err the way a failed completion appears in a transcript.
func FormatError(err error) string {
	return fmt.Sprintf("%s%s", ErrorPrefix, err.Error())
}
