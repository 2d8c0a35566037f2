package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/cloudlab/internal/config"
	applog "github.com/nao1215/cloudlab/internal/log"
	"github.com/nao1215/cloudlab/internal/model"
	"github.com/nao1215/cloudlab/internal/pipeline"
	"github.com/nao1215/cloudlab/internal/report"
	"github.com/nao1215/cloudlab/internal/transport"
)

// app is the state shared by the page commands: configuration, logger,
// egress and the report writer.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	runner *pipeline.Runner
	writer report.Writer

	stdout io.Writer
	stderr io.Writer

	// closers run in reverse order on Close.
	closers []func()

	failed int
	total  int
}

// buildConfig loads the configuration file and environment, then applies
// the global flags on top.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	proxy, err := flags.GetString("proxy")
	if err != nil {
		return nil, err
	}
	if proxy != "" {
		cfg.ProxyAddress = proxy
	}
	useTor, err := flags.GetBool("tor")
	if err != nil {
		return nil, err
	}
	if useTor {
		cfg.UseTor = true
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	if timeout != 0 {
		cfg.SetTimeout(timeout)
	}
	outputDir, err := flags.GetString("output-dir")
	if err != nil {
		return nil, err
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// newApp builds the shared state. save selects whether generated images
// and audio are written to the output directory.
func newApp(cmd *cobra.Command, save bool) (*app, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}
	a.logger = applog.New(a.stderr, applog.Options{Verbose: cfg.Verbose, JSON: cfg.LogJSON})
	if cfg.ConfigFilePath != "" {
		a.logger.Debug("configuration loaded", "path", cfg.ConfigFilePath)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	egress, err := a.egress(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.runner = pipeline.New(ctx, cfg,
		pipeline.WithLogger(a.logger),
		pipeline.WithTransportOptions(egress...),
		pipeline.WithSaveArtifacts(save),
	)

	if err := a.openWriter(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// egress returns the transport options routing page traffic through the
// configured SOCKS5 proxy or an embedded Tor daemon.
func (a *app) egress(ctx context.Context) ([]transport.Option, error) {
	switch {
	case a.cfg.ProxyAddress != "":
		status := transport.CheckProxy(ctx, a.cfg.ProxyAddress)
		if err := status.Err(); err != nil {
			return nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				err, a.cfg.ProxyAddress)
		}
		a.logger.Info("proxy connection verified", "address", a.cfg.ProxyAddress)
		return []transport.Option{transport.WithSOCKS5(a.cfg.ProxyAddress)}, nil

	case a.cfg.UseTor:
		fmt.Fprintln(a.stderr, "Starting embedded Tor daemon...")
		fmt.Fprintf(a.stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

		tor := transport.NewEmbeddedTor(
			transport.WithStartupTimeout(a.cfg.TorStartupTimeout),
			transport.WithTorLogger(a.logger),
		)
		if err := tor.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		a.closers = append(a.closers, func() {
			a.logger.Info("stopping embedded Tor daemon")
			if err := tor.Stop(); err != nil {
				a.logger.Error("failed to stop embedded Tor", "error", err)
			}
		})
		opt, err := tor.Option()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(a.stderr, "SOCKS proxy: %s\n\n", tor.SocksAddr())
		return []transport.Option{opt}, nil
	}
	return nil, nil
}

// openWriter selects the report format and destination.
func (a *app) openWriter() error {
	format := report.FormatText
	switch {
	case a.cfg.JSONReport:
		format = report.FormatJSON
	case a.cfg.MarkdownReport:
		format = report.FormatMarkdown
	}

	out := a.stdout
	if a.cfg.ReportFile != "" {
		f, err := report.OpenFile(a.cfg.ReportFile)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := f.Close(); err != nil {
				a.logger.Error("failed to close output file", "error", err)
			}
		})
		out = f
	}

	if format == report.FormatText {
		a.writer = report.NewSimpleWriter(out, report.WithVerbose(a.cfg.Verbose))
		return nil
	}
	w, err := report.New(format, out, getVersion())
	if err != nil {
		return err
	}
	a.writer = w
	return nil
}

// Close releases the output file and stops the embedded Tor daemon.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// emit renders res, or prints err when the action failed. Processing
// continues with the next input either way.
func (a *app) emit(res *model.Result, err error) {
	a.total++
	if err != nil {
		a.failed++
		fmt.Fprintln(a.stderr, "Error:", applog.RedactURL(err.Error()))
		return
	}
	if _, err := a.writer.Write(res); err != nil {
		a.failed++
		fmt.Fprintln(a.stderr, "Error: failed to write result:", err)
	}
}

// errFailed is returned when at least one action failed; the details
// were already printed by emit.
var errFailed = errors.New("failed")

// Err summarizes the actions run through emit.
func (a *app) Err() error {
	if a.failed == 0 {
		return nil
	}
	if a.total == 1 {
		return fmt.Errorf("1 action %w", errFailed)
	}
	return fmt.Errorf("%d of %d actions %w", a.failed, a.total, errFailed)
}
