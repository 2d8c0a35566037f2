package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nao1215/cloudlab/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text for terminal display.
// Plain ASCII keeps the output readable when piped to a file.
type SimpleWriter struct {
	baseWriter

	// verbose adds the request metadata block.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the request ID, digest and timing lines.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the result in human-readable format.
func (w *SimpleWriter) Write(result *model.Result) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result)
	w.writeNotices(&sb, result)
	w.writeText(&sb, result)
	w.writeFields(&sb, result)
	w.writeTable(&sb, result)
	w.writeArtifacts(&sb, result)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, result *model.Result) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("  " + strings.ToUpper(result.Title) + "\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	if !w.verbose {
		return
	}
	fmt.Fprintf(sb, "Request ID:   %s\n", result.RequestID)
	fmt.Fprintf(sb, "Page:         %s\n", result.Page)
	if !result.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:      %s\n", result.StartedAt.Format(timeLayout))
	}
	fmt.Fprintf(sb, "Duration:     %s\n", formatDuration(result.Duration))
	if result.InputDigest != "" {
		fmt.Fprintf(sb, "Input digest: %s\n", model.ShortDigest(result.InputDigest))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeNotices(sb *strings.Builder, result *model.Result) {
	if len(result.Notices) == 0 {
		return
	}
	for _, n := range result.Notices {
		fmt.Fprintf(sb, "[%s] %s\n", n.Level, n.Message)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeText(sb *strings.Builder, result *model.Result) {
	if result.Text == "" {
		return
	}
	sb.WriteString(strings.TrimRight(result.Text, "\n"))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeFields(sb *strings.Builder, result *model.Result) {
	if len(result.Fields) == 0 {
		return
	}
	width := 0
	for _, f := range result.Fields {
		width = max(width, len(f.Name))
	}
	for _, f := range result.Fields {
		fmt.Fprintf(sb, "%-*s  %s\n", width+1, f.Name+":", f.Value)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTable(sb *strings.Builder, result *model.Result) {
	t := result.Table
	if t == nil {
		return
	}
	w.writeSection(sb, t.Title)
	if len(t.Rows) == 0 {
		sb.WriteString("  (none)\n\n")
		return
	}

	tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  %s\n", strings.Join(t.Header, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintf(tw, "  %s\n", strings.Join(row, "\t"))
	}
	_ = tw.Flush() //nolint:errcheck // strings.Builder never fails
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeArtifacts(sb *strings.Builder, result *model.Result) {
	if len(result.Artifacts) == 0 {
		return
	}
	w.writeSection(sb, "Output")
	for _, a := range result.Artifacts {
		fmt.Fprintf(sb, "  [%s] %s\n", a.Kind, artifactLocation(a))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	if title == "" {
		return
	}
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(strings.ToUpper(title) + "\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
