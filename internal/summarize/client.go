// Package summarize asks an Azure OpenAI chat-completion deployment for a
// summary. It is the only page whose request is retried: connection
// failures and timeouts are retried with exponential backoff, everything
// else fails at once.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
	"github.com/nao1215/cloudlab/internal/retry"
	"github.com/nao1215/cloudlab/internal/transport"
)

const op = "summarize.complete"

// Completion parameters.
const (
	MaxTokens        = 1000
	Temperature      = 0.7
	TopP             = 1.0
	FrequencyPenalty = 0.0
	PresencePenalty  = 0.0
)

// ErrNoSummary is reported when the reply has no choices.
var ErrNoSummary = errors.New("Failed to generate a summary") //nolint:staticcheck // shown to the user as is

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Messages         []message `json:"messages"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	PresencePenalty  float64   `json:"presence_penalty"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Result is a summary and its metrics.
type Result struct {
	Summary string  `json:"summary"`
	Options Options `json:"options"`
	Metrics Metrics `json:"metrics"`
}

// Client is the summarization page client.
type Client struct {
	endpoint string
	http     *http.Client
	policy   retry.Policy
	logger   *slog.Logger
}

// NewClient validates cfg and builds a client that retries with policy.
func NewClient(cfg config.PageConfig, policy retry.Policy, logger *slog.Logger, opts ...transport.Option) (*Client, error) {
	if err := cfg.Require(config.PageSummarize); err != nil {
		return nil, apierr.Config(op, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	base := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithHeader("api-key", cfg.APIKey),
		transport.WithLogger(logger),
	}
	hc, err := transport.NewHTTPClient(append(base, opts...)...)
	if err != nil {
		return nil, apierr.Config(op, err)
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Client{endpoint: cfg.Endpoint, http: hc, policy: policy, logger: logger}, nil
}

// Summarize builds the prompt for text and returns the model's summary.
func (c *Client) Summarize(ctx context.Context, text string, o Options) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apierr.InvalidInput(op, ErrEmptyText)
	}
	if err := o.Validate(); err != nil {
		return nil, apierr.InvalidInput(op, err)
	}

	body, err := json.Marshal(completionRequest{
		Messages:         []message{{Role: "user", Content: BuildPrompt(text, o)}},
		MaxTokens:        MaxTokens,
		Temperature:      Temperature,
		TopP:             TopP,
		FrequencyPenalty: FrequencyPenalty,
		PresencePenalty:  PresencePenalty,
	})
	if err != nil {
		return nil, apierr.InvalidInput(op, err)
	}

	summary, err := retry.Do(ctx, c.policy, func(ctx context.Context) (string, error) {
		return c.complete(ctx, body)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Summary: summary, Options: o, Metrics: ComputeMetrics(text, summary)}, nil
}

// complete performs one round trip.
func (c *Client) complete(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apierr.Config(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	if err := apierr.CheckResponse(op, resp); err != nil {
		return "", err
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// A body cut off by the client timeout is a transport failure.
		if ctxErr := ctx.Err(); ctxErr != nil || isTimeout(err) {
			return "", apierr.FromTransport(op, err)
		}
		return "", apierr.Malformed(op, err)
	}
	if len(out.Choices) == 0 {
		return "", &apierr.Error{Reason: apierr.ReasonMalformed, Op: op, Message: ErrNoSummary.Error(), Err: ErrNoSummary}
	}
	return out.Choices[0].Message.Content, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
