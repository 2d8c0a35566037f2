// Package server exposes the pages over HTTP for local front ends.
//
// Routes live under /api/v1 and accept JSON or multipart uploads. Every
// failure is answered with an ErrorResponse whose status reflects the
// failure class: configuration 503, upstream 502, transport 504 and bad
// input 400.
package server
