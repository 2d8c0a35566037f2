package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "cloudlab"

	// DefaultTimeout is the per-request timeout for every page.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxAttempts is the summarization retry ceiling.
	DefaultMaxAttempts = 3

	// MaxRetryAttempts is the largest accepted retry ceiling.
	MaxRetryAttempts = 10

	// DefaultBackoffUnit is the summarization backoff base; attempt n waits unit * 2^n.
	DefaultBackoffUnit = time.Second

	// DefaultTorStartupTimeout bounds embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "cloudlab/1.0 (+https://github.com/nao1215/cloudlab)"

	// DefaultVisionEndpoint is the Google Cloud Vision annotate endpoint.
	DefaultVisionEndpoint = "https://vision.googleapis.com/v1/images:annotate"

	// DefaultTranslateEndpoint is the Google Translate v2 base path.
	DefaultTranslateEndpoint = "https://translation.googleapis.com/language/translate/"

	// DefaultImageGenEndpoint is the Azure OpenAI DALL-E 3 deployment.
	DefaultImageGenEndpoint = "https://access-01.openai.azure.com/openai/deployments/dall-e-3/images/generations?api-version=2024-02-01"

	// DefaultSpeechEndpoint is the Azure OpenAI text-to-speech deployment.
	DefaultSpeechEndpoint = "https://access-01.openai.azure.com/openai/deployments/tts/audio/speech?api-version=2024-05-01-preview"
)

// Page names a cloudlab page.
type Page string

// Pages.
const (
	PageImageGen   Page = "imagegen"
	PageVision     Page = "vision"
	PageTranslate  Page = "translate"
	PageTranscribe Page = "transcribe"
	PageSummarize  Page = "summarize"
	PageSpeech     Page = "speech"
)

// AllPages lists every page in display order.
func AllPages() []Page {
	return []Page{PageImageGen, PageVision, PageTranslate, PageTranscribe, PageSummarize, PageSpeech}
}

// ParsePage converts a name to a Page.
func ParsePage(name string) (Page, error) {
	for _, p := range AllPages() {
		if strings.EqualFold(string(p), name) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPage, name)
}

// PageConfig is the explicit configuration passed to one page client.
type PageConfig struct {
	// Endpoint is the full URL (or base path for translate) of the API.
	Endpoint string `yaml:"endpoint,omitempty"`

	// APIKey is the static credential.
	APIKey string `yaml:"apiKey,omitempty"`

	// Timeout is the whole-request timeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Require reports a configuration error if the credential or endpoint is
// missing. The error wraps ErrMissingCredential or ErrMissingEndpoint.
func (p PageConfig) Require(page Page) error {
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("%s: %w (set %s or pages.%s.apiKey)", page, ErrMissingCredential, envKeyFor(page), page)
	}
	if strings.TrimSpace(p.Endpoint) == "" {
		return fmt.Errorf("%s: %w (set pages.%s.endpoint)", page, ErrMissingEndpoint, page)
	}
	return nil
}

// RetryConfig configures the summarization retry wrapper.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts.
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// Unit is the backoff base.
	Unit time.Duration `yaml:"unit,omitempty"`
}

// Config holds all cloudlab settings.
type Config struct {
	// Pages maps each page to its endpoint, credential and timeout.
	Pages map[Page]PageConfig

	// Retry configures the summarization page.
	Retry RetryConfig

	// ProxyAddress routes page traffic through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes page traffic through it.
	UseTor bool

	// TorStartupTimeout bounds embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON selects the JSON log handler.
	LogJSON bool

	// JSONReport and MarkdownReport select the output format. Text is the default.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the rendered result to a file instead of stdout.
	ReportFile string

	// OutputDir receives generated artifacts (annotated images, audio, images).
	OutputDir string

	// ConfigFilePath is the YAML file that was loaded, if any.
	ConfigFilePath string
}

// NewConfig returns a Config populated with defaults. Credentials are empty.
func NewConfig() *Config {
	return &Config{
		Pages: map[Page]PageConfig{
			PageImageGen:   {Endpoint: DefaultImageGenEndpoint, Timeout: DefaultTimeout},
			PageVision:     {Endpoint: DefaultVisionEndpoint, Timeout: DefaultTimeout},
			PageTranslate:  {Endpoint: DefaultTranslateEndpoint, Timeout: DefaultTimeout},
			PageTranscribe: {Timeout: DefaultTimeout},
			PageSummarize:  {Timeout: DefaultTimeout},
			PageSpeech:     {Endpoint: DefaultSpeechEndpoint, Timeout: DefaultTimeout},
		},
		Retry: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			Unit:        DefaultBackoffUnit,
		},
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		OutputDir:         ".",
	}
}

// Page returns the configuration of one page.
func (c *Config) Page(p Page) PageConfig {
	return c.Pages[p]
}

// SetTimeout overrides the timeout of every page.
func (c *Config) SetTimeout(d time.Duration) {
	for p, pc := range c.Pages {
		pc.Timeout = d
		c.Pages[p] = pc
	}
}

// XDGConfigDir returns the cloudlab configuration directory.
// On Linux: ~/.config/cloudlab
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks settings that do not depend on which page runs.
// Missing credentials are reported per page by PageConfig.Require.
func (c *Config) Validate() error {
	for _, p := range AllPages() {
		if c.Pages[p].Timeout <= 0 {
			return fmt.Errorf("%s: %w", p, ErrInvalidTimeout)
		}
	}
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > MaxRetryAttempts {
		return ErrInvalidMaxAttempts
	}
	if c.Retry.Unit <= 0 {
		return ErrInvalidBackoffUnit
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingEgress
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}
