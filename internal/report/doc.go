// Package report renders page results.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for scripts and the HTTP front
//   - MarkdownWriter: Markdown with tables, alerts and a mermaid pie chart
//
// Result data lives in the model package; writers only format it, so a
// new output format never touches the page clients.
package report
