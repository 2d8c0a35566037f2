// Package imagegen generates images from a text prompt through an Azure
// OpenAI DALL-E deployment.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
	"github.com/nao1215/cloudlab/internal/transport"
)

const op = "imagegen.generate"

// Supported sizes and qualities.
var (
	Sizes     = []string{"1024x1024", "1792x1024", "1024x1792"}
	Qualities = []string{"standard", "hd"}
)

// Defaults and limits.
const (
	DefaultSize    = "1024x1024"
	DefaultQuality = "standard"
	MinImages      = 1
	MaxImages      = 10
)

// Soft warnings attached to a Result.
const (
	WarnNoImages        = "no images were generated"
	WarnUnexpectedEntry = "Unexpected response format"
)

// Input errors.
var (
	ErrEmptyPrompt    = errors.New("prompt is empty")
	ErrUnknownSize    = errors.New("unsupported image size")
	ErrUnknownQuality = errors.New("unsupported image quality")
	ErrImageCount     = fmt.Errorf("number of images must be between %d and %d", MinImages, MaxImages)
)

// Request is one generation request.
type Request struct {
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	N       int    `json:"n"`
}

func (r Request) withDefaults() Request {
	if r.Size == "" {
		r.Size = DefaultSize
	}
	if r.Quality == "" {
		r.Quality = DefaultQuality
	}
	if r.N == 0 {
		r.N = MinImages
	}
	return r
}

// Validate checks the request after defaults are applied.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Prompt) == "":
		return ErrEmptyPrompt
	case !slices.Contains(Sizes, r.Size):
		return fmt.Errorf("%w: %q", ErrUnknownSize, r.Size)
	case !slices.Contains(Qualities, r.Quality):
		return fmt.Errorf("%w: %q", ErrUnknownQuality, r.Quality)
	case r.N < MinImages || r.N > MaxImages:
		return ErrImageCount
	}
	return nil
}

// Image is one generated image. Exactly one of URL and Data is set.
type Image struct {
	Index         int
	URL           string
	Data          []byte
	RevisedPrompt string
}

// Result is the decoded reply.
type Result struct {
	Request  Request
	Images   []Image
	Warnings []string
}

type wireEntry struct {
	URL           string `json:"url"`
	B64JSON       string `json:"b64_json"`
	RevisedPrompt string `json:"revised_prompt"`
}

type wireResponse struct {
	Data *[]wireEntry `json:"data"`
}

// Client is the image generation page client.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient validates cfg and builds a client.
func NewClient(cfg config.PageConfig, logger *slog.Logger, opts ...transport.Option) (*Client, error) {
	if err := cfg.Require(config.PageImageGen); err != nil {
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
	return &Client{endpoint: cfg.Endpoint, http: hc, logger: logger}, nil
}

// Generate sends the prompt and decodes the returned images.
func (c *Client) Generate(ctx context.Context, r Request) (*Result, error) {
	r = r.withDefaults()
	if err := r.Validate(); err != nil {
		return nil, apierr.InvalidInput(op, err)
	}

	body, err := json.Marshal(r)
	if err != nil {
		return nil, apierr.InvalidInput(op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apierr.Config(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	if err := apierr.CheckResponse(op, resp); err != nil {
		return nil, err
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apierr.FromTransport(op, ctxErr)
		}
		return nil, apierr.Malformed(op, err)
	}
	return c.decode(r, wire), nil
}

func (c *Client) decode(r Request, wire wireResponse) *Result {
	res := &Result{Request: r}
	if wire.Data == nil || len(*wire.Data) == 0 {
		res.Warnings = append(res.Warnings, WarnNoImages)
		return res
	}
	for i, e := range *wire.Data {
		img := Image{Index: i + 1, RevisedPrompt: e.RevisedPrompt}
		switch {
		case e.URL != "":
			img.URL = e.URL
		case e.B64JSON != "":
			data, err := base64.StdEncoding.DecodeString(e.B64JSON)
			if err != nil {
				c.logger.Debug("invalid base64 image", "index", i+1, "error", err)
				res.Warnings = append(res.Warnings, fmt.Sprintf("image %d: %s", i+1, WarnUnexpectedEntry))
				continue
			}
			img.Data = data
		default:
			res.Warnings = append(res.Warnings, fmt.Sprintf("image %d: %s", i+1, WarnUnexpectedEntry))
			continue
		}
		res.Images = append(res.Images, img)
	}
	return res
}
