package translate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
)

type captured struct {
	path string
	key  string
	body map[string]any
}

func newTestClient(t *testing.T, status int, reply string) (*Client, chan captured) {
	t.Helper()
	ch := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		ch <- captured{path: r.URL.Path, key: r.URL.Query().Get("key"), body: body}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), config.PageConfig{
		Endpoint: srv.URL + "/language/translate",
		APIKey:   "google-key",
		Timeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, ch
}

// field reads a request parameter from the {"data": {...}} envelope the
// v2 API wraps request bodies in.
func (c captured) field(key string) (any, bool) {
	data, ok := c.body["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := data[key]
	return v, ok
}

func TestTranslate_ExplicitSource(t *testing.T) {
	t.Parallel()

	c, ch := newTestClient(t, http.StatusOK, `{"data":{"translations":[{"translatedText":"Hola mundo"}]}}`)
	res, err := c.Translate(context.Background(), "Hello world", "en", "es")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Text != "Hola mundo" || res.Source != "en" || res.Target != "es" || res.Detected {
		t.Errorf("result = %+v", res)
	}

	got := <-ch
	if got.path != "/language/translate/v2" {
		t.Errorf("path = %q", got.path)
	}
	if got.key != "google-key" {
		t.Errorf("key = %q", got.key)
	}
	src, _ := got.field("source")
	tgt, _ := got.field("target")
	if src != "en" || tgt != "es" {
		t.Errorf("body = %v", got.body)
	}
}

func TestTranslate_AutoDetect(t *testing.T) {
	t.Parallel()

	c, ch := newTestClient(t, http.StatusOK, `{"data":{"translations":[{"translatedText":"Hello","detectedSourceLanguage":"fr"}]}}`)
	res, err := c.Translate(context.Background(), "Bonjour", Auto, "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Source != "fr" || !res.Detected {
		t.Errorf("result = %+v", res)
	}
	if _, ok := (<-ch).field("source"); ok {
		t.Error("source must be omitted for auto-detection")
	}
}

func TestTranslate_UpstreamError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key."}}`)
	_, err := c.Translate(context.Background(), "Hello", "en", "ja")
	if apierr.ReasonOf(err) != apierr.ReasonUpstream {
		t.Fatalf("reason = %v (%v)", apierr.ReasonOf(err), err)
	}
	if apierr.StatusOf(err) != http.StatusBadRequest {
		t.Errorf("status = %d", apierr.StatusOf(err))
	}
	if !strings.Contains(err.Error(), "API key not valid. Please pass a valid API key.") {
		t.Errorf("message not kept verbatim: %v", err)
	}
}

func TestTranslate_InvalidInput(t *testing.T) {
	t.Parallel()

	c, ch := newTestClient(t, http.StatusOK, `{}`)
	tests := []struct {
		name           string
		text, src, tgt string
		want           error
	}{
		{name: "empty text", text: "  ", src: "en", tgt: "ja", want: ErrEmptyText},
		{name: "auto target", text: "hi", src: "en", tgt: "auto", want: ErrAutoTarget},
		{name: "bad target", text: "hi", src: "en", tgt: "not a code", want: ErrUnknownLanguage},
	}
	for _, tt := range tests {
		_, err := c.Translate(context.Background(), tt.text, tt.src, tt.tgt)
		if !errors.Is(err, tt.want) || apierr.ReasonOf(err) != apierr.ReasonInvalidInput {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
	select {
	case <-ch:
		t.Error("no request expected for rejected input")
	default:
	}
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), config.PageConfig{Endpoint: config.DefaultTranslateEndpoint, Timeout: time.Second}, nil)
	if !errors.Is(err, config.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
}

func TestParseLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		allowAuto bool
		want      string
		wantErr   error
	}{
		{in: "EN", want: "en"},
		{in: "pt-br", want: "pt-BR"},
		{in: "auto", allowAuto: true, want: Auto},
		{in: "", allowAuto: true, want: Auto},
		{in: "auto", wantErr: ErrAutoTarget},
		{in: "xyz123", wantErr: ErrUnknownLanguage},
	}
	for _, tt := range tests {
		got, err := ParseLanguage(tt.in, tt.allowAuto)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseLanguage(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseLanguage(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"ja":   "Japanese",
		"es":   "Spanish",
		"auto": "Auto-detect",
	}
	for code, want := range tests {
		if got := DisplayName(code); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", code, got, want)
		}
	}
}
