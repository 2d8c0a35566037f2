package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
	"github.com/nao1215/cloudlab/internal/imagegen"
	"github.com/nao1215/cloudlab/internal/model"
	"github.com/nao1215/cloudlab/internal/retry"
	"github.com/nao1215/cloudlab/internal/speech"
	"github.com/nao1215/cloudlab/internal/summarize"
	"github.com/nao1215/cloudlab/internal/transcribe"
	"github.com/nao1215/cloudlab/internal/translate"
	"github.com/nao1215/cloudlab/internal/transport"
	"github.com/nao1215/cloudlab/internal/vision"
	"github.com/nao1215/cloudlab/internal/webtext"
)

// Runner executes page actions.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger

	// transportOpts are appended to every page client, e.g. SOCKS5 egress.
	transportOpts []transport.Option

	// sleep overrides the retry wait, for tests.
	sleep retry.SleepFunc

	// saveArtifacts writes generated files to cfg.OutputDir and keeps
	// only their paths in the result. When false, bytes stay inline.
	saveArtifacts bool

	vision     *vision.Client
	translate  *translate.Client
	transcribe *transcribe.Client
	summarize  *summarize.Client
	speech     *speech.Client
	imagegen   *imagegen.Client
	fetcher    *webtext.Fetcher

	// errs holds the construction error of each unavailable page.
	errs map[config.Page]error
}

// Option is a function that configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger passed to every page client.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTransportOptions adds options to every page client, e.g. the
// egress proxy.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(r *Runner) {
		r.transportOpts = append(r.transportOpts, opts...)
	}
}

// WithSaveArtifacts writes generated images and audio to the output
// directory.
func WithSaveArtifacts(save bool) Option {
	return func(r *Runner) {
		r.saveArtifacts = save
	}
}

// WithRetrySleep replaces the wait between summarization attempts.
func WithRetrySleep(sleep retry.SleepFunc) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// New builds a client for every page. Pages with incomplete
// configuration are recorded and reported when used.
func New(ctx context.Context, cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, errs: make(map[config.Page]error)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	topts := append([]transport.Option{transport.WithUserAgent(cfg.UserAgent)}, r.transportOpts...)
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Unit:        cfg.Retry.Unit,
		Sleep:       r.sleep,
		Logger:      r.logger,
	}

	var err error
	if r.vision, err = vision.NewClient(cfg.Page(config.PageVision), r.logger, topts...); err != nil {
		r.errs[config.PageVision] = err
	}
	if r.translate, err = translate.NewClient(ctx, cfg.Page(config.PageTranslate), r.logger, topts...); err != nil {
		r.errs[config.PageTranslate] = err
	}
	if r.transcribe, err = transcribe.NewClient(cfg.Page(config.PageTranscribe), r.logger, topts...); err != nil {
		r.errs[config.PageTranscribe] = err
	}
	if r.summarize, err = summarize.NewClient(cfg.Page(config.PageSummarize), policy, r.logger, topts...); err != nil {
		r.errs[config.PageSummarize] = err
	}
	if r.speech, err = speech.NewClient(cfg.Page(config.PageSpeech), r.logger, topts...); err != nil {
		r.errs[config.PageSpeech] = err
	}
	if r.imagegen, err = imagegen.NewClient(cfg.Page(config.PageImageGen), r.logger, topts...); err != nil {
		r.errs[config.PageImageGen] = err
	}

	// Pages fetched for summarization go through the same egress.
	hc, err := transport.NewHTTPClient(append(topts,
		transport.WithTimeout(cfg.Page(config.PageSummarize).Timeout),
		transport.WithLogger(r.logger))...)
	if err != nil {
		hc = nil
	}
	r.fetcher = webtext.NewFetcher(hc, r.logger)

	for p, err := range r.errs {
		r.logger.Debug("page unavailable", "page", string(p), "error", err)
	}
	return r
}

// Available reports the pages that can be used and the reason for each
// that cannot.
func (r *Runner) Available() map[config.Page]error {
	out := make(map[config.Page]error, len(config.AllPages()))
	for _, p := range config.AllPages() {
		out[p] = r.errs[p]
	}
	return out
}

// pageErr returns the construction error of p, or nil.
func (r *Runner) pageErr(p config.Page) error {
	return r.errs[p]
}

// run wraps one page action with cancellation, request ID and logging.
func (r *Runner) run(ctx context.Context, res *model.Result, fn func(context.Context) error) (*model.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, apierr.FromTransport(res.Page, err)
	}
	ctx = transport.WithRequestID(ctx, res.RequestID)
	logger := r.logger.With("page", res.Page, "request_id", res.RequestID)

	logger.Info("executing page", "input", model.ShortDigest(res.InputDigest))
	if err := fn(ctx); err != nil {
		logger.Debug("page failed", "reason", apierr.ReasonOf(err).String(), "error", err)
		return nil, err
	}
	res.Finish()
	logger.Debug("page completed", "duration", res.Duration)
	return res, nil
}

// maxArtifactSuffix bounds the search for a free artifact name.
const maxArtifactSuffix = 1000

// createArtifact creates name inside the output directory without replacing
// an existing file. A taken name gets a -1, -2, ... suffix before the
// extension.
func (r *Runner) createArtifact(name string) (*os.File, error) {
	dir := r.outputDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i <= maxArtifactSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // path is inside the output directory
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("no free file name for %s in %s", name, dir)
}

// writeArtifact writes data to a new file named after name inside the
// output directory and returns its path.
func (r *Runner) writeArtifact(name string, data []byte) (string, error) {
	f, err := r.createArtifact(name)
	if err != nil {
		return "", err
	}
	path := f.Name()
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path) //nolint:errcheck // best effort cleanup
		return "", err
	}
	return path, nil
}

// baseName returns the file name of p without its extension, or fallback.
func baseName(p, fallback string) string {
	b := filepath.Base(p)
	b = strings.TrimSuffix(b, filepath.Ext(b))
	if b == "" || b == "." || b == string(filepath.Separator) {
		return fallback
	}
	return b
}
