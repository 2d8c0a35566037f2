package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/cloudlab/internal/config"
	"github.com/nao1215/cloudlab/internal/pipeline"
)

const visionReply = `{"responses":[{"localizedObjectAnnotations":[{"name":"Animal","score":0.75,"boundingPoly":{"normalizedVertices":[{"x":0.1,"y":0.1},{"x":0.9,"y":0.1},{"x":0.9,"y":0.9},{"x":0.1,"y":0.9}]}}]}]}`

// newTestServer configures vision and speech against a fake upstream.
// Every other page is left unconfigured.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/vision", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, visionReply)
	})
	mux.HandleFunc("/tts", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ID3audio")
	})
	mux.HandleFunc("/dalle", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"contentFilter","message":"Your request was rejected as a result of our safety system."}}`)
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	cfg := config.NewConfig()
	cfg.Pages[config.PageVision] = config.PageConfig{Endpoint: upstream.URL + "/vision", APIKey: "vision-key", Timeout: 5 * time.Second}
	cfg.Pages[config.PageSpeech] = config.PageConfig{Endpoint: upstream.URL + "/tts", APIKey: "tts-key", Timeout: 5 * time.Second}
	cfg.Pages[config.PageImageGen] = config.PageConfig{Endpoint: upstream.URL + "/dalle", APIKey: "dalle-key", Timeout: 5 * time.Second}
	return New(pipeline.New(context.Background(), cfg))
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body is not JSON: %v\n%s", err, rec.Body.String())
	}
	return e
}

func multipartImage(t *testing.T, field string) *http.Request {
	t.Helper()
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 40, 30))); err != nil {
		t.Fatal(err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "dog.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(img.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(t), httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Pages  map[string]string `json:"pages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "OK" || body.Pages["vision"] != "ok" || body.Pages["translate"] != "unconfigured" {
		t.Errorf("body = %+v", body)
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	t.Run("returns the result with an inline PNG", func(t *testing.T) {
		t.Parallel()

		rec := do(t, newTestServer(t), multipartImage(t, "file"))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Request-Id") == "" {
			t.Error("missing X-Request-Id")
		}
		var body struct {
			Data struct {
				Objects   []pipeline.DetectedObject `json:"objects"`
				Annotated []byte                    `json:"annotated_png"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if len(body.Data.Objects) != 1 || body.Data.Objects[0].Category != "Animal" {
			t.Errorf("objects = %+v", body.Data.Objects)
		}
		if _, err := png.Decode(bytes.NewReader(body.Data.Annotated)); err != nil {
			t.Errorf("annotated_png: %v", err)
		}
	})

	t.Run("missing file part", func(t *testing.T) {
		t.Parallel()

		rec := do(t, newTestServer(t), multipartImage(t, "image"))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if e := decodeError(t, rec); e.Status != http.StatusBadRequest || !strings.Contains(e.Error, `"file" is required`) {
			t.Errorf("error = %+v", e)
		}
	})
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		req    *http.Request
		status int
		want   string
	}{
		{
			name:   "unconfigured page",
			req:    postJSON("/api/v1/translate", `{"text":"hola","target":"en"}`),
			status: http.StatusServiceUnavailable,
			want:   "GOOGLE_TRANSLATION_KEY",
		},
		{
			name:   "upstream message",
			req:    postJSON("/api/v1/imagine", `{"prompt":"a lake"}`),
			status: http.StatusBadGateway,
			want:   "Your request was rejected as a result of our safety system.",
		},
		{
			name:   "invalid input",
			req:    postJSON("/api/v1/imagine", `{"prompt":"a lake","size":"10x10"}`),
			status: http.StatusBadRequest,
			want:   "unsupported image size",
		},
		{
			name:   "bad json",
			req:    postJSON("/api/v1/speak", `{`),
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown summary length",
			req:    postJSON("/api/v1/summarize", `{"text":"x","length":"epic"}`),
			status: http.StatusBadRequest,
			want:   "unknown summary length",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, newTestServer(t), tt.req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			e := decodeError(t, rec)
			if e.Status != tt.status {
				t.Errorf("body status = %d", e.Status)
			}
			if tt.want != "" && !strings.Contains(e.Error+" "+e.Message, tt.want) {
				t.Errorf("error = %+v, want substring %q", e, tt.want)
			}
		})
	}
}

func TestTransportErrorIsRedacted(t *testing.T) {
	t.Parallel()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	cfg := config.NewConfig()
	cfg.Pages[config.PageVision] = config.PageConfig{Endpoint: deadURL + "/vision", APIKey: "AIzaSyD-super-secret-key-1234567890ab", Timeout: 2 * time.Second}
	s := New(pipeline.New(context.Background(), cfg))

	rec := do(t, s, multipartImage(t, "file"))
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "super-secret") {
		t.Errorf("credential leaked: %s", rec.Body.String())
	}
}

func TestSpeak(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(t), postJSON("/api/v1/speak", `{"input":"Hello","voice":"echo"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "speech_echo.mp3") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "ID3audio" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/translate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := do(t, newTestServer(t), req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		cancel()
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestDetect_UploadTooLarge(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Pages[config.PageVision] = config.PageConfig{Endpoint: "http://127.0.0.1:1/vision", APIKey: "vision-key", Timeout: time.Second}
	s := New(pipeline.New(context.Background(), cfg), WithMaxUploadSize(64))

	rec := do(t, s, multipartImage(t, "file"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeError(t, rec); !strings.Contains(got.Error, "file") {
		t.Errorf("error = %q", got.Error)
	}
}
