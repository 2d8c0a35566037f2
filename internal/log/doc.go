// Package log builds the cloudlab slog logger.
//
// Every handler is wrapped in a SecureHandler that masks credentials
// before a record reaches the output:
//   - attributes named like credentials (api-key, authorization, token, ...)
//   - values that look like keys (Google "AIza..." keys, bearer and basic
//     auth values, JWTs, long alphanumeric strings)
//   - the key, api-key, code and sig query parameters inside URLs,
//     including URLs embedded in error messages from net/http
//
// Usage:
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true})
//	logger.Debug("request sent", "url", req.URL.String())
//	// url=https://vision.googleapis.com/v1/images:annotate?key=***REDACTED***
package log
