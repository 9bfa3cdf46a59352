package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/companion/config"
)

// OpenRouterClient talks to an OpenAI-compatible chat completions endpoint.
// It is stateless: credential and base URL come in at construction time, one
// request maps to one HTTP attempt.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	siteURL      string
	appName      string
	models       map[string]string
	defaultModel string
	client       *http.Client
}

// NewOpenRouterClient builds a client from configuration. The credential may
// be empty; Complete reports ErrNotConfigured at call time so the service can
// still boot in mock-only deployments.
func NewOpenRouterClient(cfg config.LLMConfig, serverCfg config.ServerConfig) *OpenRouterClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		siteURL:      serverCfg.SiteURL,
		appName:      serverCfg.AppName,
		models:       cfg.Models,
		defaultModel: cfg.DefaultModel,
		client:       &http.Client{Timeout: timeout},
	}
}

// ResolveModel translates a friendly model name into the upstream identifier.
// Unmapped names fall back to the configured default upstream model.
func (c *OpenRouterClient) ResolveModel(model string) string {
	if upstream, ok := c.models[model]; ok {
		return upstream
	}
	return c.defaultModel
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete performs a single chat completion attempt.
func (c *OpenRouterClient) Complete(ctx context.Context, req Request) (Result, error) {
	resp, err := c.do(ctx, req, false)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &UpstreamError{Status: resp.StatusCode, Body: err.Error()}
	}
	if err := classifyStatus(resp.StatusCode, string(raw)); err != nil {
		return Result{}, err
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, &UpstreamError{Status: resp.StatusCode, Body: "malformed response body"}
	}
	if out.Error.Message != "" {
		if strings.Contains(out.Error.Message, "Rate limit exceeded") {
			return Result{}, fmt.Errorf("%w: %s", ErrRateLimited, out.Error.Message)
		}
		return Result{}, &UpstreamError{Status: resp.StatusCode, Body: out.Error.Message}
	}
	if len(out.Choices) == 0 {
		return Result{}, &UpstreamError{Status: resp.StatusCode, Body: "no choices in response"}
	}

	return Result{
		Text:             out.Choices[0].Message.Content,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}

// CompleteStream performs one streaming attempt. Fragments are emitted in
// arrival order; the text channel closes after the terminal sentinel.
func (c *OpenRouterClient) CompleteStream(ctx context.Context, req Request) (<-chan string, <-chan error, error) {
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return nil, nil, err
	}
	if err := classifyStatus(resp.StatusCode, ""); err != nil {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if ue, ok := err.(*UpstreamError); ok {
			ue.Body = string(raw)
		}
		return nil, nil, err
	}

	chunks := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}
			var frame struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &frame); err != nil {
				continue
			}
			if len(frame.Choices) == 0 || frame.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case chunks <- frame.Choices[0].Delta.Content:
			case <-ctx.Done():
				errs <- mapTransportError(ctx.Err())
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- mapTransportError(err)
		}
	}()
	return chunks, errs, nil
}

func (c *OpenRouterClient) do(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: c.ResolveModel(req.Model),
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		httpReq.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.appName != "" {
		httpReq.Header.Set("X-Title", c.appName)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(err)
	}
	return resp, nil
}

func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status 429", ErrRateLimited)
	case status >= 200 && status < 300:
		if strings.Contains(body, "Rate limit exceeded") {
			return fmt.Errorf("%w: %s", ErrRateLimited, firstLine(body))
		}
		return nil
	default:
		return &UpstreamError{Status: status, Body: body}
	}
}

func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	// net/http wraps client timeouts in a *url.Error with Timeout() true.
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &UpstreamError{Body: err.Error()}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
