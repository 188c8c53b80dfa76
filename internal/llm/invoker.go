// Package llm provides the model invocation layer: a Bedrock-backed client
// for live analysis, a deterministic fallback generator for offline runs, and
// the tolerant JSON extraction used on raw model output.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrBackendUnavailable means no usable model credentials are configured.
	ErrBackendUnavailable = errors.New("llm: model backend unavailable")
	// ErrBackend means the model call failed after the retry budget.
	ErrBackend = errors.New("llm: backend invocation failed")
	// ErrTimeout means the invocation exceeded its deadline.
	ErrTimeout = errors.New("llm: invocation timed out")
)

// Invoker sends a prompt plus system instruction to a text-generation
// backend and returns raw model text.
type Invoker interface {
	Invoke(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// HTTPDoer allows tests to fake HTTP transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BedrockConfig configures the Bedrock invoke endpoint.
type BedrockConfig struct {
	BearerToken string
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// RetryBackoff is the fixed wait before the single throttling retry.
	RetryBackoff time.Duration
}

const (
	defaultModelID      = "anthropic.claude-3-sonnet-20240229-v1:0"
	defaultRegion       = "us-east-1"
	defaultMaxTokens    = 4096
	defaultTemperature  = 0.2
	defaultTimeout      = 60 * time.Second
	defaultRetryBackoff = 2 * time.Second
	anthropicVersion    = "bedrock-2023-05-31"
)

// BedrockClient invokes an Anthropic model through the Bedrock runtime HTTP
// API using bearer-token auth. Safe for concurrent use.
type BedrockClient struct {
	cfg        BedrockConfig
	endpoint   string
	httpClient HTTPDoer
	log        zerolog.Logger
}

// NewBedrockClient creates a client with sane defaults. A nil httpClient gets
// a stock http.Client with the configured timeout.
func NewBedrockClient(cfg BedrockConfig, httpClient HTTPDoer, log zerolog.Logger) *BedrockClient {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = defaultRegion
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &BedrockClient{
		cfg:        cfg,
		endpoint:   fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/model/%s/invoke", cfg.Region, cfg.ModelID),
		httpClient: httpClient,
		log:        log,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type invokeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type bedrockErrorEnvelope struct {
	Message string `json:"message"`
}

// Invoke sends one prompt to Bedrock. On HTTP 429 it waits the fixed backoff
// and retries exactly once before surfacing ErrBackend.
func (c *BedrockClient) Invoke(ctx context.Context, prompt, systemInstruction string) (string, error) {
	if strings.TrimSpace(c.cfg.BearerToken) == "" {
		return "", ErrBackendUnavailable
	}

	payload, err := json.Marshal(invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        c.cfg.MaxTokens,
		Temperature:      c.cfg.Temperature,
		System:           systemInstruction,
		Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal invoke request: %w", err)
	}

	text, throttled, err := c.invokeOnce(ctx, payload)
	if err == nil {
		return text, nil
	}
	if !throttled {
		return "", err
	}

	c.log.Warn().Err(err).Dur("backoff", c.cfg.RetryBackoff).Msg("bedrock throttled, retrying once")
	select {
	case <-time.After(c.cfg.RetryBackoff):
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}

	text, _, err = c.invokeOnce(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("%w: retry failed: %v", ErrBackend, err)
	}
	return text, nil
}

// invokeOnce performs one HTTP round trip. The bool reports whether the
// failure was a recoverable throttling signal.
func (c *BedrockClient) invokeOnce(ctx context.Context, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", false, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("%w: read response: %v", ErrBackend, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("%w: status 429", ErrBackend)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr bedrockErrorEnvelope
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return "", false, fmt.Errorf("%w: status %d: %s", ErrBackend, resp.StatusCode, apiErr.Message)
		}
		return "", false, fmt.Errorf("%w: status %d: %s", ErrBackend, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed invokeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("%w: decode response: %v", ErrBackend, err)
	}
	if len(parsed.Content) == 0 {
		return "", false, fmt.Errorf("%w: empty content", ErrBackend)
	}
	return parsed.Content[0].Text, false, nil
}

// NewInvoker selects the invocation backend for the given config: the real
// Bedrock client when a bearer token is present, otherwise the deterministic
// keyword-driven fallback generator so the pipeline never blocks on backend
// availability.
func NewInvoker(cfg BedrockConfig, httpClient HTTPDoer, log zerolog.Logger) Invoker {
	if strings.TrimSpace(cfg.BearerToken) == "" {
		log.Info().Msg("no bedrock credentials, using deterministic fallback generator")
		return NewFallbackInvoker(log)
	}
	return NewBedrockClient(cfg, httpClient, log)
}
