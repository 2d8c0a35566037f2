package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the
// current directory.
const DefaultConfigFile = ".cloudlab.yaml"

// XDGConfigFile is the configuration file name inside XDGConfigDir.
const XDGConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the on-disk YAML configuration format.
//
// Example:
//
//	pages:
//	  vision:
//	    apiKey: "..."
//	  summarize:
//	    endpoint: "https://example.openai.azure.com/openai/deployments/gpt/chat/completions?api-version=2024-02-01"
//	    apiKey: "..."
//	    timeout: 30s
//	retry:
//	  maxAttempts: 3
//	  unit: 1s
//	proxy: "127.0.0.1:9050"
type File struct {
	// Pages overrides per-page endpoint, credential and timeout.
	Pages map[Page]PageConfig `yaml:"pages,omitempty"`

	// Retry overrides the summarization retry policy.
	Retry RetryConfig `yaml:"retry,omitempty"`

	// Proxy is a SOCKS5 address.
	Proxy string `yaml:"proxy,omitempty"`

	// Tor starts an embedded Tor daemon.
	Tor bool `yaml:"tor,omitempty"`

	// UserAgent overrides the default User-Agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// OutputDir is the artifact directory.
	OutputDir string `yaml:"outputDir,omitempty"`
}

// LoadConfigFile reads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers decide whether that is fatal based on whether the path was
// given explicitly by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for name := range cf.Pages {
		if _, err := ParsePage(string(name)); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .cloudlab.yaml in the current directory
// 3. Look for config.yaml in the XDG config directory (~/.config/cloudlab)
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), XDGConfigFile)
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}
	return ""
}

// ApplyFile merges non-zero values from the file over c.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	for name, override := range f.Pages {
		pc := c.Pages[name]
		if override.Endpoint != "" {
			pc.Endpoint = override.Endpoint
		}
		if override.APIKey != "" {
			pc.APIKey = override.APIKey
		}
		if override.Timeout > 0 {
			pc.Timeout = override.Timeout
		}
		c.Pages[name] = pc
	}
	if f.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = f.Retry.MaxAttempts
	}
	if f.Retry.Unit != 0 {
		c.Retry.Unit = f.Retry.Unit
	}
	if f.Proxy != "" {
		c.ProxyAddress = f.Proxy
	}
	if f.Tor {
		c.UseTor = true
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.OutputDir != "" {
		c.OutputDir = f.OutputDir
	}
}

// envBinding maps an environment variable to one page field.
type envBinding struct {
	name     string
	page     Page
	endpoint bool
}

// envBindings lists the recognized environment variables. A variable may
// feed more than one page.
var envBindings = []envBinding{
	{name: "AZURE_DALLE_API_KEY", page: PageImageGen},
	{name: "GOOGLE_CLOUD_VISION_API_KEY", page: PageVision},
	{name: "GOOGLE_TRANSLATION_KEY", page: PageTranslate},
	{name: "WHISPER_API_KEY", page: PageTranscribe},
	{name: "WHISPER_API_URL", page: PageTranscribe, endpoint: true},
	{name: "AZURE_OPENAI_API_KEY", page: PageSummarize},
	{name: "AZURE_OPENAI_API_ENDPOINT", page: PageSummarize, endpoint: true},
	{name: "AZURE_OPENAI_API_KEY", page: PageSpeech},
	{name: "AZURE_TTS_ENDPOINT", page: PageSpeech, endpoint: true},
}

// envKeyFor returns the environment variable holding the page credential.
func envKeyFor(page Page) string {
	for _, b := range envBindings {
		if b.page == page && !b.endpoint {
			return b.name
		}
	}
	return "an API key"
}

// ApplyEnv overrides page credentials and endpoints from environment
// variables. lookup is usually os.LookupEnv; tests pass a map-backed func.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		pc := c.Pages[b.page]
		if b.endpoint {
			pc.Endpoint = v
		} else {
			pc.APIKey = v
		}
		c.Pages[b.page] = pc
	}
}

// Load builds a Config from defaults, the configuration file and the
// environment. An explicitly given path that does not exist is an error;
// a missing implicit file is not.
func Load(configPath string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := NewConfig()

	path := FindConfigFile(configPath)
	if configPath != "" && path == "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}
	if path != "" {
		f, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg.ApplyFile(f)
		cfg.ConfigFilePath = path
	}
	if lookup != nil {
		cfg.ApplyEnv(lookup)
	}
	return cfg, nil
}

