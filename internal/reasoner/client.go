// Package reasoner talks to an OpenAI-compatible chat completions endpoint on
// behalf of the triage and judge stages. A fast junior model handles triage and
// first-pass judgment; a larger senior model handles escalations.
package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/OFF-rtk/sentinel-auditor/internal/event"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

const (
	juniorTemperature = 0
	seniorTemperature = 0.1
	maxTokens         = 1024
	maxReplyBytes     = 1 << 20
)

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	junior  string
	senior  string
	logger  *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func New(cfg config.ReasonerConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("reasoner base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultReasonerTimeout
	}
	c := &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		junior:  cfg.JuniorModel,
		senior:  cfg.SeniorModel,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ExtractSearchTerms asks the junior model for policy search phrases.
func (c *Client) ExtractSearchTerms(ctx context.Context, ev *event.AuditEvent) ([]string, error) {
	prompt, err := render(triagePrompt, dataFor(ev, nil, ""))
	if err != nil {
		return nil, err
	}
	reply, err := c.complete(ctx, c.junior, juniorTemperature, prompt)
	if err != nil {
		return nil, err
	}
	return ParseStringList(reply)
}

// JuniorJudge asks the junior model for a first verdict.
func (c *Client) JuniorJudge(ctx context.Context, ev *event.AuditEvent, policies []string) (Raw, error) {
	return c.judge(ctx, c.junior, juniorTemperature, juniorPrompt, dataFor(ev, policies, ""))
}

// SeniorJudge asks the senior model to decide, given the junior's reasoning.
// An unparsable reply is returned with its Text and sentinel.ErrUnparsable.
func (c *Client) SeniorJudge(ctx context.Context, ev *event.AuditEvent, policies []string, prior string) (Raw, error) {
	return c.judge(ctx, c.senior, seniorTemperature, seniorPrompt, dataFor(ev, policies, prior))
}

func (c *Client) judge(ctx context.Context, model string, temp float64, tmpl *template.Template, d promptData) (Raw, error) {
	prompt, err := render(tmpl, d)
	if err != nil {
		return Raw{}, err
	}
	reply, err := c.complete(ctx, model, temp, prompt)
	if err != nil {
		return Raw{}, err
	}
	return ParseObject(reply)
}

func dataFor(ev *event.AuditEvent, policies []string, prior string) promptData {
	return promptData{
		Log:      string(ev.Raw()),
		Client:   ev.ClientSummary(),
		Policies: strings.Join(policies, "\n"),
		Prior:    prior,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete sends one user message and returns the first choice's content.
// Transport failures and non-2xx answers wrap sentinel.ErrUnavailable.
func (c *Client) complete(ctx context.Context, model string, temp float64, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temp,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: reasoner %s: %w", sentinel.ErrUnavailable, model, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read reply: %w", sentinel.ErrUnavailable, err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: reasoner %s answered %d", sentinel.ErrUnavailable, model, resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: completion envelope: %v", sentinel.ErrUnparsable, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", sentinel.ErrUnparsable)
	}
	c.logger.DebugContext(ctx, "reasoner call completed", "model", model, "duration_ms", time.Since(start).Milliseconds())
	return out.Choices[0].Message.Content, nil
}
