// Package webtext fetches a web page and extracts its readable text so it
// can be summarized.
package webtext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mvdan/xurls"

	"github.com/nao1215/cloudlab/internal/apierr"
)

const op = "webtext.fetch"

// MaxPageSize bounds how much of a page is read.
const MaxPageSize = 5 * 1024 * 1024

// ErrNoText is returned when a page has no title or paragraph text.
var ErrNoText = errors.New("no readable text found on page")

// FindURL returns the first URL in s, or "". Only strict URLs with a
// scheme are recognized.
func FindURL(s string) string {
	return xurls.Strict.FindString(s)
}

// IsURL reports whether s, trimmed, is exactly one URL.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && FindURL(s) == s
}

// Page is the extracted content of a web page.
type Page struct {
	URL   string
	Title string
	Text  string
}

// Fetcher downloads pages.
type Fetcher struct {
	http   *http.Client
	logger *slog.Logger
}

// NewFetcher returns a Fetcher using hc, which carries the egress settings.
func NewFetcher(hc *http.Client, logger *slog.Logger) *Fetcher {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{http: hc, logger: logger}
}

// Fetch downloads url and extracts its title and paragraphs.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apierr.InvalidInput(op, err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	if err := apierr.CheckResponse(op, resp); err != nil {
		return nil, err
	}

	page, err := Extract(io.LimitReader(resp.Body, MaxPageSize))
	if err != nil {
		return nil, apierr.Malformed(op, err)
	}
	page.URL = url
	f.logger.Debug("page extracted", "url", url, "chars", len(page.Text))
	return page, nil
}

// Extract parses HTML from r and returns the page title and the text of
// every <p> element, one paragraph per line.
func Extract(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	title := normalize(doc.Find("title").First().Text())
	paragraphs := doc.Find("p").Map(func(_ int, s *goquery.Selection) string {
		return normalize(s.Text())
	})

	var lines []string
	for _, p := range paragraphs {
		if p != "" {
			lines = append(lines, p)
		}
	}
	if title == "" && len(lines) == 0 {
		return nil, ErrNoText
	}
	return &Page{Title: title, Text: strings.Join(lines, "\n")}, nil
}

// Document returns the page as a single text for summarization.
func (p *Page) Document() string {
	if p.Title == "" {
		return p.Text
	}
	if p.Text == "" {
		return p.Title
	}
	return p.Title + "\n\n" + p.Text
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
