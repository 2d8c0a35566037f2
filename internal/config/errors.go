package config

import "errors"

// Configuration errors. Validate and PageConfig.Require return these,
// possibly wrapped with the page name, so callers can use errors.Is.
var (
	// ErrMissingCredential is returned when a page has no API key.
	ErrMissingCredential = errors.New("missing API credential")

	// ErrMissingEndpoint is returned when a page has no endpoint URL.
	ErrMissingEndpoint = errors.New("missing API endpoint")

	// ErrInvalidTimeout is returned when a page timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxAttempts is returned when the retry ceiling is outside 1..MaxRetryAttempts.
	ErrInvalidMaxAttempts = errors.New("invalid retry attempts: must be between 1 and 10")

	// ErrInvalidBackoffUnit is returned when the retry unit is not positive.
	ErrInvalidBackoffUnit = errors.New("invalid retry unit: must be positive")

	// ErrConflictingEgress is returned when both --proxy and --tor are set.
	ErrConflictingEgress = errors.New("conflicting egress: --proxy and --tor cannot be used together")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrUnknownPage is returned for a page name that does not exist.
	ErrUnknownPage = errors.New("unknown page")
)
