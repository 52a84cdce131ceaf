// Package llm streams chat completions from an OpenAI-compatible API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	gopenai "github.com/sashabaranov/go-openai"

	"docsense/internal/domain"
)

var (
	// ErrRateLimited reports a 429 that retries could not clear.
	ErrRateLimited = errors.New("model rate limited")
	// ErrTimeout reports a request that exceeded its deadline.
	ErrTimeout = errors.New("model request timed out")
)

// Config configures the chat completion client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client implements domain.ChatModel. Connection attempts are retried
// with exponential backoff, but a stream that has produced its first
// token is never restarted; the partial text is whatever arrived.
type Client struct {
	api        *gopenai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	logger     *log.Logger
}

func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	apiCfg := gopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	return &Client{
		api:        gopenai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		logger:     log.Default().With("component", "llm"),
	}, nil
}

// Stream opens a completion stream and forwards deltas on the returned
// channel. The channel closes when the response finishes; a terminal
// failure is delivered as the final delta's Err.
func (c *Client) Stream(ctx context.Context, messages []domain.Message, opts domain.GenOptions) (<-chan domain.Delta, error) {
	req := gopenai.ChatCompletionRequest{
		Model:            c.model,
		Messages:         toAPIMessages(messages),
		MaxTokens:        opts.MaxTokens,
		Temperature:      opts.Temperature,
		TopP:             opts.TopP,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
		Stream:           true,
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)

	var stream *gopenai.ChatCompletionStream
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		stream, err = c.api.CreateChatCompletionStream(reqCtx, req)
		if err == nil {
			break
		}
		if !retryable(err) || attempt == c.maxRetries {
			cancel()
			return nil, classify(err)
		}
		c.logger.Warn("stream open failed, retrying", "attempt", attempt+1, "err", err)
		select {
		case <-time.After(250 * time.Millisecond << attempt):
		case <-reqCtx.Done():
			cancel()
			return nil, classify(reqCtx.Err())
		}
	}

	out := make(chan domain.Delta)
	go func() {
		defer close(out)
		defer cancel()
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				out <- domain.Delta{Err: classify(err)}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if content := resp.Choices[0].Delta.Content; content != "" {
				select {
				case out <- domain.Delta{Content: content}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Remediation maps a model failure to a message fit for end users.
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "The model is rate limited right now. Wait a moment and try again, or switch to a model with more headroom."
	case errors.Is(err, ErrTimeout):
		return "The model took too long to respond. Try a shorter question or ask again."
	default:
		return "The model request failed. Check your API key and connection, then try again."
	}
}

func toAPIMessages(messages []domain.Message) []gopenai.ChatCompletionMessage {
	out := make([]gopenai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = gopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func retryable(err error) bool {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func classify(err error) error {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
