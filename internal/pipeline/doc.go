// Package pipeline runs page actions end to end.
//
// Every page follows the same shape: collect input, build one request,
// perform one HTTP call and turn the reply into a model.Result. The
// Runner owns the per-page clients built from an explicit config.Config
// and is shared by the CLI commands and the HTTP front, so both render
// the same results.
//
// A page whose configuration is incomplete does not prevent the others
// from running; its actions fail with an apierr.ReasonConfig error
// before any request is sent.
package pipeline
