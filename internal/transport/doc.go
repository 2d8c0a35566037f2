// Package transport builds the *http.Client used by every page.
//
// A client is assembled from options: the per-page timeout, the static
// credential (header, bearer token or query parameter), a User-Agent,
// an optional SOCKS5 egress and debug logging of each round trip. The
// credential is added by a RoundTripper so request builders never see it.
//
// Egress through Tor uses an embedded daemon managed by tornago:
//
//	tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(3 * time.Minute))
//	if err := tor.Start(ctx); err != nil { ... }
//	defer tor.Stop()
//	client, err := transport.NewHTTPClient(transport.WithSOCKS5(tor.SocksAddr()))
package transport
