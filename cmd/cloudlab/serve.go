package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/nao1215/cloudlab/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pages as a JSON HTTP API",
		Long: `Serve exposes every page under /api/v1 for a browser front end:

  GET  /health
  POST /api/v1/detect       multipart field "file" (image)
  POST /api/v1/transcribe   multipart field "file" (mp3, wav, m4a)
  POST /api/v1/translate    {"text", "source", "target"}
  POST /api/v1/summarize    {"text", "url", "length", "audience", "reduction"}
  POST /api/v1/speak        {"input", "voice", "response_format", "speed"}
  POST /api/v1/imagine      {"prompt", "size", "quality", "n"}

Generated images and audio are returned in the response body instead of
being written to disk. The server stops gracefully on SIGINT or SIGTERM.

The default address only accepts local connections. The server has no
authentication, spends the configured API credentials on every request,
and fetches any URL passed to /api/v1/summarize, so binding a public
interface (e.g. --addr :9000) lets any client reach those from this host.

Examples:
  cloudlab serve

  cloudlab serve --addr 127.0.0.1:9000 --allow-origin https://lab.example.com`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", server.DefaultAddr, "Listen address (loopback by default; other interfaces expose the API credentials and URL fetching)")
	cmd.Flags().StringSlice("allow-origin", []string{"http://localhost:3000"}, "Origins allowed by CORS")
	cmd.Flags().Int64("max-upload", server.DefaultMaxUploadSize, "Maximum request body size in bytes")
	cmd.Flags().Duration("shutdown-timeout", server.DefaultShutdownTimeout, "Time allowed for in-flight requests on shutdown")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}
	origins, err := cmd.Flags().GetStringSlice("allow-origin")
	if err != nil {
		return err
	}
	maxUpload, err := cmd.Flags().GetInt64("max-upload")
	if err != nil {
		return err
	}
	shutdownTimeout, err := cmd.Flags().GetDuration("shutdown-timeout")
	if err != nil {
		return err
	}

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	for page, err := range a.runner.Available() {
		if err != nil {
			a.logger.Warn("page unavailable", "page", string(page), "error", err)
		}
	}

	if exposedAddr(addr) {
		a.logger.Warn("listening beyond loopback: any client that can reach this address can use the configured API keys and make this host fetch URLs", "addr", addr)
	}

	srv := server.New(a.runner,
		server.WithLogger(a.logger),
		server.WithAllowOrigins(origins...),
		server.WithMaxUploadSize(maxUpload),
		server.WithShutdownTimeout(shutdownTimeout),
	)
	fmt.Fprintf(a.stdout, "Listening on http://%s (press Ctrl-C to stop)\n", addr)
	return srv.Serve(cmd.Context(), addr)
}

// exposedAddr reports whether addr accepts connections from other hosts.
// An empty host binds every interface.
func exposedAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return true
	}
	if host == "localhost" {
		return false
	}
	ip := net.ParseIP(host)
	return ip == nil || !ip.IsLoopback()
}
