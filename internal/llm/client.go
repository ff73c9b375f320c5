// Package llm talks to the Anthropic Messages API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Config configures a Client.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	BaseURL   string // empty for the public API
}

// Turn is one prior message in the conversation.
type Turn struct {
	Role string // "user" or "assistant"
	Text string
}

// Request is a single completion call.
type Request struct {
	System   string
	Turns    []Turn // history, oldest first
	Question string
}

// Reply is the model's text answer.
type Reply struct {
	Text         string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Client calls Claude. Retries are left to the caller so the backoff policy
// lives in one place.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
	Stats     *LLMStats
}

func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{
		api:       anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		Stats:     NewLLMStats(time.Hour),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends the request and returns the concatenated text blocks of the
// reply. Rate limiting and server errors come back as *RetryableError.
func (c *Client) Complete(ctx context.Context, req Request) (Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  buildMessages(req),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	msg, err := c.api.Messages.New(ctx, params)
	c.Stats.Record(time.Since(start).Milliseconds())
	if err != nil {
		return Reply{}, classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return Reply{}, fmt.Errorf("empty response from claude (stop reason %q)", msg.StopReason)
	}
	return Reply{
		Text:         sb.String(),
		StopReason:   string(msg.StopReason),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

// buildMessages lays out history then the question. The API requires the
// first message to come from the user and roles to alternate, so leading
// assistant turns are dropped and repeated roles are merged.
func buildMessages(req Request) []anthropic.MessageParam {
	turns := append(append([]Turn(nil), req.Turns...), Turn{Role: "user", Text: req.Question})

	var merged []Turn
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		if len(merged) == 0 && t.Role != "user" {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Role == t.Role {
			merged[n-1].Text += "\n\n" + t.Text
			continue
		}
		merged = append(merged, t)
	}

	out := make([]anthropic.MessageParam, 0, len(merged))
	for _, t := range merged {
		block := anthropic.NewTextBlock(t.Text)
		if t.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error(), Err: err}
		}
		return fmt.Errorf("claude api status %d: %w", apiErr.StatusCode, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RetryableError{Message: "request timed out", Err: err}
	}
	return fmt.Errorf("claude api: %w", err)
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func (e *RetryableError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
