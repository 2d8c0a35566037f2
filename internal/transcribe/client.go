// Package transcribe uploads audio to a Whisper-compatible speech-to-text
// endpoint and returns the transcript.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
	"github.com/nao1215/cloudlab/internal/transport"
)

const op = "transcribe.audio"

// NoTranscription is returned as the text when the reply has no text field.
const NoTranscription = "No transcription available"

// MaxAudioSize is the largest upload accepted (Whisper's limit).
const MaxAudioSize = 25 << 20

// ErrUnsupportedFormat is returned for files other than mp3, wav and m4a.
var ErrUnsupportedFormat = errors.New("unsupported audio format: use mp3, wav or m4a")

// ErrAudioTooLarge is returned for uploads above MaxAudioSize.
var ErrAudioTooLarge = errors.New("audio file exceeds 25 MiB")

// contentTypes maps accepted extensions to the part Content-Type.
var contentTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/mp4",
}

// ContentType returns the MIME type for an accepted file name.
func ContentType(name string) (string, error) {
	ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
	return ct, nil
}

// Result is a transcript.
type Result struct {
	Text string `json:"text"`

	// Empty is true when the reply had no text and Text holds NoTranscription.
	Empty bool `json:"empty"`

	// Language is set when the endpoint reports it (verbose_json replies).
	Language string `json:"language,omitempty"`
}

// Client is the speech-to-text page client.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient validates cfg and builds a client. The key is sent both as a
// bearer token and as the api-key header, which covers OpenAI and Azure
// deployments.
func NewClient(cfg config.PageConfig, logger *slog.Logger, opts ...transport.Option) (*Client, error) {
	if err := cfg.Require(config.PageTranscribe); err != nil {
		return nil, apierr.Config(op, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	base := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithBearer(cfg.APIKey),
		transport.WithHeader("api-key", cfg.APIKey),
		transport.WithLogger(logger),
	}
	hc, err := transport.NewHTTPClient(append(base, opts...)...)
	if err != nil {
		return nil, apierr.Config(op, err)
	}
	return &Client{endpoint: cfg.Endpoint, http: hc, logger: logger}, nil
}

// Transcribe uploads audio as the multipart field "file".
func (c *Client) Transcribe(ctx context.Context, name string, audio io.Reader) (*Result, error) {
	ct, err := ContentType(name)
	if err != nil {
		return nil, apierr.InvalidInput(op, err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(name)))
	h.Set("Content-Type", ct)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, apierr.InvalidInput(op, err)
	}
	n, err := io.Copy(part, io.LimitReader(audio, MaxAudioSize+1))
	if err != nil {
		return nil, apierr.InvalidInput(op, fmt.Errorf("read audio: %w", err))
	}
	if n > MaxAudioSize {
		return nil, apierr.InvalidInput(op, ErrAudioTooLarge)
	}
	if n == 0 {
		return nil, apierr.InvalidInput(op, errors.New("audio file is empty"))
	}
	if err := writer.Close(); err != nil {
		return nil, apierr.InvalidInput(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, apierr.Config(op, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debug("uploading audio", "file", filepath.Base(name), "bytes", n)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	if err := apierr.CheckResponse(op, resp); err != nil {
		return nil, err
	}

	var reply struct {
		Text     *string `json:"text"`
		Language string  `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, apierr.Malformed(op, err)
	}
	if reply.Text == nil {
		return &Result{Text: NoTranscription, Empty: true, Language: reply.Language}, nil
	}
	return &Result{Text: *reply.Text, Language: reply.Language}, nil
}
