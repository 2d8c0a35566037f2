package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.PageConfig{
		Endpoint: srv.URL + "/v1/images:annotate",
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestAnnotate_Request(t *testing.T) {
	t.Parallel()

	var got wireRequest
	var key string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		key = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"responses":[{}]}`)
	})

	if _, err := c.Annotate(context.Background(), []byte("img-bytes")); err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	if key != "test-key" {
		t.Errorf("key query parameter = %q", key)
	}
	if len(got.Requests) != 1 {
		t.Fatalf("expected one image request, got %d", len(got.Requests))
	}
	content, _ := base64.StdEncoding.DecodeString(got.Requests[0].Image.Content)
	if string(content) != "img-bytes" {
		t.Errorf("image content = %q", content)
	}
	want := []wireFeature{{"OBJECT_LOCALIZATION", 20}, {"LABEL_DETECTION", 10}}
	if len(got.Requests[0].Features) != 2 || got.Requests[0].Features[0] != want[0] || got.Requests[0].Features[1] != want[1] {
		t.Errorf("features = %+v", got.Requests[0].Features)
	}
}

func TestAnnotate_Decode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantPresent bool
		wantObjects int
		wantLabels  int
	}{
		{
			name: "objects and labels",
			body: `{"responses":[{
				"localizedObjectAnnotations":[{"name":"Person","score":0.93,"boundingPoly":{"normalizedVertices":[{"x":0.1,"y":0.2},{"x":0.5,"y":0.2},{"x":0.5},{"y":0.9}]}}],
				"labelAnnotations":[{"description":"Smile","score":0.8},{"description":"Fun","score":0.7}]}]}`,
			wantPresent: true,
			wantObjects: 1,
			wantLabels:  2,
		},
		{
			name:        "empty object list",
			body:        `{"responses":[{"localizedObjectAnnotations":[]}]}`,
			wantPresent: true,
		},
		{
			name:        "missing object field",
			body:        `{"responses":[{"labelAnnotations":[{"description":"Sky","score":0.9}]}]}`,
			wantPresent: false,
			wantLabels:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			resp, err := c.Annotate(context.Background(), []byte("x"))
			if err != nil {
				t.Fatalf("Annotate: %v", err)
			}
			if resp.Present != tt.wantPresent {
				t.Errorf("Present = %v, want %v", resp.Present, tt.wantPresent)
			}
			if len(resp.Objects) != tt.wantObjects {
				t.Errorf("objects = %d, want %d", len(resp.Objects), tt.wantObjects)
			}
			if len(resp.Labels) != tt.wantLabels {
				t.Errorf("labels = %d, want %d", len(resp.Labels), tt.wantLabels)
			}
			if len(resp.Raw) == 0 {
				t.Error("raw body not kept")
			}
		})
	}
}

func TestAnnotate_OmittedZeroCoordinates(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"responses":[{"localizedObjectAnnotations":[{"name":"Cat","score":0.5,"boundingPoly":{"normalizedVertices":[{},{"x":1},{"x":1,"y":1},{"y":1}]}}]}]}`)
	resp, err := decodeResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	v := resp.Objects[0].Vertices
	if len(v) != 4 || v[0].X != 0 || v[0].Y != 0 || v[2].X != 1 || v[3].Y != 1 {
		t.Errorf("vertices = %+v", v)
	}
}

func TestAnnotate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantReason apierr.Reason
		wantMsg    string
	}{
		{
			name:       "upstream error message is kept verbatim",
			status:     http.StatusBadRequest,
			body:       `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`,
			wantReason: apierr.ReasonUpstream,
			wantMsg:    "vision.annotate: API key not valid. Please pass a valid API key.",
		},
		{
			name:       "per image error inside 200",
			status:     http.StatusOK,
			body:       `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`,
			wantReason: apierr.ReasonUpstream,
			wantMsg:    "vision.annotate: Bad image data.",
		},
		{
			name:       "not json",
			status:     http.StatusOK,
			body:       `<html>`,
			wantReason: apierr.ReasonMalformed,
		},
		{
			name:       "no responses",
			status:     http.StatusOK,
			body:       `{"responses":[]}`,
			wantReason: apierr.ReasonMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Annotate(context.Background(), []byte("x"))
			if got := apierr.ReasonOf(err); got != tt.wantReason {
				t.Fatalf("reason = %v, want %v (err %v)", got, tt.wantReason, err)
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("error = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestNewClient_MissingCredential(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := NewClient(config.PageConfig{Endpoint: srv.URL, Timeout: time.Second}, nil)
	if apierr.ReasonOf(err) != apierr.ReasonConfig {
		t.Fatalf("expected config error, got %v", err)
	}
	if !errors.Is(err, config.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential in chain, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("no request may be sent without a credential")
	}
}

func TestAnnotate_EmptyImage(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	if _, err := c.Annotate(context.Background(), nil); apierr.ReasonOf(err) != apierr.ReasonInvalidInput {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestInspectEXIF_NoExif(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	m := InspectEXIF(buf.Bytes())
	if m.Present || m.HasGPS || m.Rotated() {
		t.Errorf("unexpected metadata %+v", m)
	}
}

func TestOrientationOf(t *testing.T) {
	t.Parallel()

	if got := orientationOf([]uint16{6}, ""); got != 6 {
		t.Errorf("orientationOf([]uint16{6}) = %d", got)
	}
	if got := orientationOf(nil, "[3]"); got != 3 {
		t.Errorf("orientationOf(formatted [3]) = %d", got)
	}
	if got := orientationOf(nil, "n/a"); got != 0 {
		t.Errorf("orientationOf(n/a) = %d", got)
	}
	if !(Metadata{Orientation: 6}).Rotated() || (Metadata{Orientation: 1}).Rotated() {
		t.Error("Rotated mismatch")
	}
}
