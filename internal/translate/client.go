// Package translate calls the Google Cloud Translation v2 API through the
// generated google.golang.org/api client.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	translatev2 "google.golang.org/api/translate/v2"

	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
	"github.com/nao1215/cloudlab/internal/transport"
)

const op = "translate.text"

// Result is one translated text.
type Result struct {
	Text string `json:"text"`

	// Source is the language sent by the caller, or the detected language
	// when the caller asked for auto-detection.
	Source string `json:"source"`

	// Detected is true when Source came from the API.
	Detected bool `json:"detected"`

	Target string `json:"target"`
}

// Client is the translation page client.
type Client struct {
	svc    *translatev2.Service
	logger *slog.Logger
}

// NewClient validates cfg and builds a client. The API key is sent as the
// key query parameter by the transport, because option.WithAPIKey is
// ignored when a custom HTTP client is supplied.
func NewClient(ctx context.Context, cfg config.PageConfig, logger *slog.Logger, opts ...transport.Option) (*Client, error) {
	if err := cfg.Require(config.PageTranslate); err != nil {
		return nil, apierr.Config(op, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	base := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithQueryParam("key", cfg.APIKey),
		transport.WithLogger(logger),
	}
	hc, err := transport.NewHTTPClient(append(base, opts...)...)
	if err != nil {
		return nil, apierr.Config(op, err)
	}

	endpoint := cfg.Endpoint
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	svc, err := translatev2.NewService(ctx, option.WithHTTPClient(hc), option.WithEndpoint(endpoint))
	if err != nil {
		return nil, apierr.Config(op, err)
	}
	return &Client{svc: svc, logger: logger}, nil
}

// Translate translates text from source to target. source "auto" (or
// empty) lets the API detect the language.
func (c *Client) Translate(ctx context.Context, text, source, target string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apierr.InvalidInput(op, ErrEmptyText)
	}
	tgt, err := ParseLanguage(target, false)
	if err != nil {
		return nil, apierr.InvalidInput(op, err)
	}
	src, err := ParseLanguage(source, true)
	if err != nil {
		return nil, apierr.InvalidInput(op, err)
	}

	req := &translatev2.TranslateTextRequest{
		Q:      []string{text},
		Target: tgt,
		Format: "text",
	}
	if src != Auto {
		req.Source = src
	}

	resp, err := c.svc.Translations.Translate(req).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Translations) == 0 || resp.Translations[0] == nil {
		return nil, apierr.Malformed(op, errors.New("no translations in reply"))
	}

	tr := resp.Translations[0]
	out := &Result{Text: tr.TranslatedText, Source: src, Target: tgt}
	if src == Auto {
		out.Source = tr.DetectedSourceLanguage
		out.Detected = true
	}
	c.logger.Debug("translated", "source", out.Source, "target", out.Target, "chars", len([]rune(text)))
	return out, nil
}

// classify maps errors from the generated client to apierr reasons.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = fmt.Sprintf("Error %d: %s", gerr.Code, strings.TrimSpace(gerr.Body))
		}
		return &apierr.Error{Reason: apierr.ReasonUpstream, Op: op, Status: gerr.Code, Message: msg, Err: err}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apierr.FromTransport(op, err)
	}
	return apierr.Malformed(op, err)
}
