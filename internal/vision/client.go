// Package vision calls the Google Cloud Vision images:annotate API for
// object localization and label detection.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nao1215/cloudlab/internal/annotate"
	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
	"github.com/nao1215/cloudlab/internal/transport"
)

// Feature limits sent with every request.
const (
	MaxObjects = 20
	MaxLabels  = 10
)

// maxResponseBody bounds the decoded reply.
const maxResponseBody = 32 << 20

const op = "vision.annotate"

// Label is an image-level label.
type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Response is the decoded reply for one image.
type Response struct {
	// Present is false when the reply had no localizedObjectAnnotations
	// field at all. An empty list sets Present with no Objects.
	Present bool `json:"present"`

	Objects []annotate.Detection `json:"objects"`
	Labels  []Label              `json:"labels"`

	// Raw is the reply body as received.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Client is the object-detection page client.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient validates cfg and builds a client. The API key is sent as the
// key query parameter.
func NewClient(cfg config.PageConfig, logger *slog.Logger, opts ...transport.Option) (*Client, error) {
	if err := cfg.Require(config.PageVision); err != nil {
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
	return &Client{endpoint: cfg.Endpoint, http: hc, logger: logger}, nil
}

type wireFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type wireImage struct {
	Content string `json:"content"`
}

type wireImageRequest struct {
	Image    wireImage     `json:"image"`
	Features []wireFeature `json:"features"`
}

type wireRequest struct {
	Requests []wireImageRequest `json:"requests"`
}

type wireVertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type wireObject struct {
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	BoundingPoly struct {
		NormalizedVertices []wireVertex `json:"normalizedVertices"`
	} `json:"boundingPoly"`
}

type wireResponse struct {
	Responses []struct {
		LocalizedObjectAnnotations *[]wireObject `json:"localizedObjectAnnotations"`
		LabelAnnotations           []Label       `json:"labelAnnotations"`
		Error                      *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// buildRequest encodes the annotate request for one image.
func buildRequest(image []byte) ([]byte, error) {
	req := wireRequest{Requests: []wireImageRequest{{
		Image: wireImage{Content: base64.StdEncoding.EncodeToString(image)},
		Features: []wireFeature{
			{Type: "OBJECT_LOCALIZATION", MaxResults: MaxObjects},
			{Type: "LABEL_DETECTION", MaxResults: MaxLabels},
		},
	}}}
	return json.Marshal(req)
}

// Annotate sends image and decodes objects and labels.
func (c *Client) Annotate(ctx context.Context, image []byte) (*Response, error) {
	if len(image) == 0 {
		return nil, apierr.InvalidInput(op, errors.New("empty image"))
	}
	body, err := buildRequest(image)
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
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, apierr.FromTransport(op, err)
	}
	return decodeResponse(raw)
}

// decodeResponse converts the wire reply. A per-image error inside a 200
// reply is reported as an upstream failure.
func decodeResponse(raw []byte) (*Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, apierr.Malformed(op, err)
	}
	if len(wire.Responses) == 0 {
		return nil, apierr.Malformed(op, errors.New("no responses in reply"))
	}
	first := wire.Responses[0]
	if first.Error != nil && first.Error.Message != "" {
		return nil, &apierr.Error{
			Reason:  apierr.ReasonUpstream,
			Op:      op,
			Status:  http.StatusOK,
			Message: first.Error.Message,
		}
	}

	out := &Response{Labels: first.LabelAnnotations, Raw: raw}
	if first.LocalizedObjectAnnotations != nil {
		out.Present = true
		for _, o := range *first.LocalizedObjectAnnotations {
			d := annotate.Detection{Name: o.Name, Score: o.Score}
			for _, v := range o.BoundingPoly.NormalizedVertices {
				d.Vertices = append(d.Vertices, annotate.Vertex{X: v.X, Y: v.Y})
			}
			out.Objects = append(out.Objects, d)
		}
	}
	return out, nil
}
