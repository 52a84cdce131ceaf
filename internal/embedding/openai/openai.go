// Package openai embeds text through an OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	gopenai "github.com/sashabaranov/go-openai"
)

// Config configures the remote embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client calls the /embeddings endpoint of an OpenAI-compatible server.
// The vector dimension is learned lazily from the first response.
type Client struct {
	api        *gopenai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	dimension  int
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
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Client{
		api:        gopenai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (c *Client) Name() string { return "openai" }

// Prepare is a no-op; remote models carry their own fixed vocabulary.
func (c *Client) Prepare(ctx context.Context, corpus []string) error { return nil }

func (c *Client) Dimension() int { return c.dimension }

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.api.CreateEmbeddings(reqCtx, gopenai.EmbeddingRequest{
			Input: []string{text},
			Model: gopenai.EmbeddingModel(c.model),
		})
		if err == nil {
			if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
				return nil, errors.New("no embedding returned")
			}
			vec := resp.Data[0].Embedding
			if c.dimension == 0 {
				c.dimension = len(vec)
			}
			return vec, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.maxRetries {
			break
		}
		select {
		case <-time.After(retryDelay(attempt)):
		case <-reqCtx.Done():
			return nil, reqCtx.Err()
		}
	}
	return nil, fmt.Errorf("embeddings request failed: %w", lastErr)
}

func retryable(err error) bool {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Transport-level failures are worth retrying; context errors are not.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func retryDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
