package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultTimeout is used when no WithTimeout option is given.
const DefaultTimeout = 60 * time.Second

// RequestIDHeader carries the request ID of the current action.
const RequestIDHeader = "X-Request-Id"

// settings collects the options of one client.
type settings struct {
	timeout   time.Duration
	userAgent string
	headers   http.Header
	query     map[string]string
	dialer    proxy.Dialer
	base      http.RoundTripper
	logger    *slog.Logger
	err       error
}

// Option configures NewHTTPClient.
type Option func(*settings)

// WithTimeout sets http.Client.Timeout, which bounds the whole request
// including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) {
		s.userAgent = ua
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(s *settings) {
		s.headers.Set(key, value)
	}
}

// WithBearer sets "Authorization: Bearer <token>".
func WithBearer(token string) Option {
	return WithHeader("Authorization", "Bearer "+token)
}

// WithQueryParam adds a query parameter to every request URL. Google APIs
// take their key this way.
func WithQueryParam(key, value string) Option {
	return func(s *settings) {
		s.query[key] = value
	}
}

// WithSOCKS5 routes connections through the SOCKS5 proxy at addr
// ("host:port"). An invalid address is reported by NewHTTPClient.
func WithSOCKS5(addr string) Option {
	return func(s *settings) {
		if !isValidProxyAddress(addr) {
			s.err = fmt.Errorf("%w: %q", ErrInvalidProxyAddress, addr)
			return
		}
		// Tor and most local SOCKS ports need no authentication.
		d, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
		if err != nil {
			s.err = fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			return
		}
		s.dialer = d
	}
}

// WithBaseTransport replaces the underlying RoundTripper. Egress options
// are ignored when a base transport is set.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(s *settings) {
		s.base = rt
	}
}

// WithLogger logs each round trip at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// NewHTTPClient builds a client from opts and reports option errors.
func NewHTTPClient(opts ...Option) (*http.Client, error) {
	s := &settings{
		timeout: DefaultTimeout,
		headers: make(http.Header),
		query:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.err != nil {
		return nil, s.err
	}

	base := s.base
	if base == nil {
		base = newBaseTransport(s.dialer)
	}
	if s.userAgent != "" {
		s.headers.Set("User-Agent", s.userAgent)
	}

	return &http.Client{
		Transport: &credentialTransport{
			base:    base,
			headers: s.headers,
			query:   s.query,
			logger:  s.logger,
		},
		Timeout: s.timeout,
	}, nil
}

func newBaseTransport(dialer proxy.Dialer) http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if dialer == nil {
		return t
	}
	t.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		t.DialContext = cd.DialContext
	} else {
		t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	// Each connection is a proxied circuit; keep the idle pool small.
	t.MaxIdleConns = 10
	t.MaxIdleConnsPerHost = 2
	t.IdleConnTimeout = 30 * time.Second
	return t
}

// isValidProxyAddress checks for "host:port" with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// credentialTransport injects the page credential, static headers and
// the request ID into every request.
type credentialTransport struct {
	base    http.RoundTripper
	headers http.Header
	query   map[string]string
	logger  *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *credentialTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, vs := range t.headers {
		clone.Header[k] = append([]string(nil), vs...)
	}
	if id := RequestIDFrom(req.Context()); id != "" {
		clone.Header.Set(RequestIDHeader, id)
	}
	if len(t.query) > 0 {
		q := clone.URL.Query()
		for k, v := range t.query {
			q.Set(k, v)
		}
		clone.URL.RawQuery = q.Encode()
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(clone)
	if t.logger != nil {
		attrs := []any{
			"method", clone.Method,
			"url", clone.URL.String(),
			"request_id", clone.Header.Get(RequestIDHeader),
			"elapsed", time.Since(start),
		}
		if err != nil {
			t.logger.Debug("round trip failed", append(attrs, "error", err)...)
		} else {
			t.logger.Debug("round trip", append(attrs, "status", resp.StatusCode)...)
		}
	}
	return resp, err
}

type requestIDKey struct{}

// WithRequestID returns a context carrying id. Clients built by this
// package send it as the X-Request-Id header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request ID stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
