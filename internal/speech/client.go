// Package speech converts text to audio through an Azure OpenAI
// text-to-speech deployment.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
	"github.com/nao1215/cloudlab/internal/transport"
)

const op = "speech.generate"

// Speed bounds.
const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	DefaultSpeed = 1.0
)

// DefaultVoice and DefaultFormat are used when the request leaves them empty.
const (
	DefaultVoice  = "alloy"
	DefaultFormat = "mp3"
)

// MaxInputChars is the longest input the service accepts.
const MaxInputChars = 4096

// voices maps each voice to a short description.
var voices = map[string]string{
	"alloy":   "Versatile, balanced voice",
	"echo":    "Clear, measured tone",
	"fable":   "Expressive storytelling voice",
	"onyx":    "Deep, authoritative voice",
	"nova":    "Warm, friendly female voice",
	"shimmer": "Bright, enthusiastic voice",
}

var formats = []string{"mp3", "opus", "aac", "flac", "wav"}

// Input errors.
var (
	ErrUnknownVoice  = errors.New("unknown voice")
	ErrUnknownFormat = errors.New("unknown audio format")
	ErrSpeedRange    = fmt.Errorf("speed must be between %.1f and %.1f", MinSpeed, MaxSpeed)
	ErrEmptyInput    = errors.New("text to speak is empty")
	ErrInputTooLong  = fmt.Errorf("text exceeds %d characters", MaxInputChars)
)

// Voices returns the voice names in alphabetical order.
func Voices() []string {
	names := make([]string, 0, len(voices))
	for v := range voices {
		names = append(names, v)
	}
	slices.Sort(names)
	return names
}

// VoiceTitle returns the display name of a voice, e.g. "Alloy".
func VoiceTitle(voice string) string {
	return cases.Title(language.English).String(voice)
}

// VoiceDescription returns the description of a voice, or "".
func VoiceDescription(voice string) string {
	return voices[voice]
}

// Request is one text-to-speech request.
type Request struct {
	Input  string  `json:"input"`
	Voice  string  `json:"voice"`
	Format string  `json:"response_format"`
	Speed  float64 `json:"speed"`
}

// withDefaults fills empty fields.
func (r Request) withDefaults() Request {
	if r.Voice == "" {
		r.Voice = DefaultVoice
	}
	if r.Format == "" {
		r.Format = DefaultFormat
	}
	if r.Speed == 0 {
		r.Speed = DefaultSpeed
	}
	r.Voice = strings.ToLower(r.Voice)
	r.Format = strings.ToLower(r.Format)
	return r
}

// Validate checks the request after defaults are applied.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return ErrEmptyInput
	}
	if len([]rune(r.Input)) > MaxInputChars {
		return ErrInputTooLong
	}
	if _, ok := voices[r.Voice]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVoice, r.Voice)
	}
	if !slices.Contains(formats, r.Format) {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, r.Format)
	}
	if r.Speed < MinSpeed || r.Speed > MaxSpeed {
		return ErrSpeedRange
	}
	return nil
}

// ContentType returns the MIME type of an audio format.
func ContentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "opus":
		return "audio/ogg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// Client is the text-to-speech page client.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient validates cfg and builds a client.
func NewClient(cfg config.PageConfig, logger *slog.Logger, opts ...transport.Option) (*Client, error) {
	if err := cfg.Require(config.PageSpeech); err != nil {
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

// Generate streams the audio for r into w and returns the byte count.
// The normalized request is returned so callers know the effective format.
func (c *Client) Generate(ctx context.Context, r Request, w io.Writer) (Request, int64, error) {
	r = r.withDefaults()
	if err := r.Validate(); err != nil {
		return r, 0, apierr.InvalidInput(op, err)
	}

	body, err := json.Marshal(r)
	if err != nil {
		return r, 0, apierr.InvalidInput(op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return r, 0, apierr.Config(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return r, 0, apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	if err := apierr.CheckResponse(op, resp); err != nil {
		return r, 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return r, n, apierr.FromTransport(op, err)
	}
	if n == 0 {
		return r, 0, apierr.Malformed(op, errors.New("empty audio body"))
	}
	c.logger.Debug("audio received", "voice", r.Voice, "format", r.Format, "bytes", n)
	return r, n, nil
}

// GenerateFile writes the audio to path. A partially written file is
// removed when the request fails.
func (c *Client) GenerateFile(ctx context.Context, r Request, path string) (Request, int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return r, 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // user-chosen output path
	if err != nil {
		return r, 0, fmt.Errorf("failed to create audio file: %w", err)
	}

	r, n, err := c.Generate(ctx, r, f)
	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write audio file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(path) //nolint:errcheck // best effort cleanup
		return r, 0, err
	}
	return r, n, nil
}
