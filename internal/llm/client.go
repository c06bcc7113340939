package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Part is one piece of a user message: text, an image reference, or both.
type Part struct {
	Text     string
	ImageURL string
}

// ChatRequest describes a single structured-output model call.
type ChatRequest struct {
	System    string
	User      []Part
	Schema    *Schema // response must conform; required for every gateway op
	MaxTokens int
}

// Chatter is the minimal chat-completion surface the gateway needs.
// The production implementation is OpenAIChatter; tests substitute a stub.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (json.RawMessage, error)
}

// Config holds model client configuration.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string        // optional override for OpenAI-compatible APIs
	Timeout    time.Duration // per-call deadline, model calls dominate latency
	MaxRetries int           // transient-error retries; 0 preserves fail-closed behavior
}

// OpenAIChatter implements Chatter against the OpenAI chat completions API
// with JSON-schema response formatting.
type OpenAIChatter struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
}

// NewOpenAIChatter creates the model client. A missing API key is a
// configuration error surfaced at construction, not at first call.
func NewOpenAIChatter(cfg Config) (*OpenAIChatter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIChatter{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIChatter) Model() string {
	return c.model
}

// Chat sends one request and returns the raw JSON content of the first
// choice, validated against the request schema. Transient provider failures
// are retried up to maxRetries times; everything else fails closed.
func (c *OpenAIChatter) Chat(ctx context.Context, req ChatRequest) (json.RawMessage, error) {
	chatReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		content, err := c.once(ctx, chatReq)
		if err == nil {
			if req.Schema != nil {
				if verr := validateResponse(req.Schema, content); verr != nil {
					return nil, verr
				}
			}
			return content, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *OpenAIChatter) once(ctx context.Context, chatReq openai.ChatCompletionRequest) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, mapAPIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIChatter) buildRequest(req ChatRequest) (openai.ChatCompletionRequest, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	// Single-part text messages use the plain content field; anything with
	// an image goes through multi-part content.
	if len(req.User) == 1 && req.User[0].ImageURL == "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.User[0].Text,
		})
	} else {
		var parts []openai.ChatMessagePart
		for _, p := range req.User {
			if p.ImageURL != "" {
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: p.ImageURL},
				})
			}
			if p.Text != "" {
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			}
		}
		if len(parts) == 0 {
			return openai.ChatCompletionRequest{}, errors.New("chat request has no user content")
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}

	if req.Schema != nil {
		schemaBytes, err := json.Marshal(req.Schema.Definition)
		if err != nil {
			return openai.ChatCompletionRequest{}, fmt.Errorf("marshalling schema: %w", err)
		}
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: json.RawMessage(schemaBytes),
				Strict: true,
			},
		}
	}

	return chatReq, nil
}

func mapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Err: err}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	return false
}
