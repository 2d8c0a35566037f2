package webtext

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nao1215/cloudlab/internal/apierr"
)

const article = `<!doctype html>
<html><head><title> Cloud   Notes </title></head>
<body>
<nav>menu</nav>
<p>First   paragraph
spans lines.</p>
<div><p>Second paragraph.</p></div>
<p>   </p>
<script>var x = 1;</script>
</body></html>`

func TestExtract(t *testing.T) {
	t.Parallel()

	page, err := Extract(strings.NewReader(article))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if page.Title != "Cloud Notes" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.Text != "First paragraph spans lines.\nSecond paragraph." {
		t.Errorf("Text = %q", page.Text)
	}
	if got := page.Document(); got != "Cloud Notes\n\nFirst paragraph spans lines.\nSecond paragraph." {
		t.Errorf("Document = %q", got)
	}
}

func TestExtract_NoText(t *testing.T) {
	t.Parallel()

	_, err := Extract(strings.NewReader("<html><body><div>only divs</div></body></html>"))
	if !errors.Is(err, ErrNoText) {
		t.Errorf("got %v, want ErrNoText", err)
	}
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/article", true},
		{"  http://example.com/a?b=c  ", true},
		{"read https://example.com please", false},
		{"example.com", false},
		{"just some text", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsURL(tt.in); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := FindURL("see https://example.com/x for details"); got != "https://example.com/x" {
		t.Errorf("FindURL = %q", got)
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(article))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := NewFetcher(srv.Client(), nil)

	page, err := f.Fetch(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.URL != srv.URL+"/article" || page.Title != "Cloud Notes" {
		t.Errorf("page = %+v", page)
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	if apierr.ReasonOf(err) != apierr.ReasonUpstream || apierr.StatusOf(err) != http.StatusNotFound {
		t.Errorf("missing page: %v", err)
	}
}
