package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/cloudlab/internal/model"
)

// MarkdownWriter outputs results in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the result in Markdown format.
func (w *MarkdownWriter) Write(result *model.Result) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeNotices(md, result)
	w.writeText(md, result)
	w.writeTable(md, result)
	w.writePieChart(md, result)
	w.writeArtifacts(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and a property table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.Result) {
	md.H1(result.Title)
	md.PlainText("")

	rows := [][]string{
		{"Request ID", "`" + result.RequestID + "`"},
		{"Page", result.Page},
	}
	if !result.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", result.StartedAt.Format(timeLayout)})
	}
	rows = append(rows, []string{"Duration", formatDuration(result.Duration)})
	for _, f := range result.Fields {
		rows = append(rows, []string{f.Name, escapeCell(f.Value)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeNotices writes one GitHub alert per notice.
func (w *MarkdownWriter) writeNotices(md *markdown.Markdown, result *model.Result) {
	for _, n := range result.Notices {
		switch n.Level {
		case model.LevelError:
			md.Cautionf("%s", n.Message)
		case model.LevelWarning:
			md.Warningf("%s", n.Message)
		default:
			md.Note(n.Message)
		}
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeText(md *markdown.Markdown, result *model.Result) {
	if result.Text == "" {
		return
	}
	md.H2("Output")
	md.PlainText("")
	md.PlainText(result.Text)
	md.PlainText("")
}

func (w *MarkdownWriter) writeTable(md *markdown.Markdown, result *model.Result) {
	t := result.Table
	if t == nil {
		return
	}
	if t.Title != "" {
		md.H2(t.Title)
		md.PlainText("")
	}
	if len(t.Rows) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = escapeCell(c)
		}
		rows[i] = cells
	}
	md.Table(markdown.TableSet{Header: t.Header, Rows: rows})
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart, e.g. detections per category.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, result *model.Result) {
	c := result.Chart
	if c == nil || len(c.Slices) == 0 {
		return
	}
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle(c.Title),
		piechart.WithShowData(true),
	)
	for _, s := range c.Slices {
		if s.Value > 0 {
			chart.LabelAndIntValue(s.Label, s.Value)
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeArtifacts(md *markdown.Markdown, result *model.Result) {
	if len(result.Artifacts) == 0 {
		return
	}
	md.H2("Files")
	md.PlainText("")

	items := make([]string, 0, len(result.Artifacts))
	for _, a := range result.Artifacts {
		loc := artifactLocation(a)
		switch {
		case a.Kind == model.ArtifactImage:
			items = append(items, "!["+string(a.Kind)+"]("+loc+")")
		case a.URL != "":
			items = append(items, "["+loc+"]("+loc+")")
		default:
			items = append(items, string(a.Kind)+": `"+loc+"` ("+strconv.FormatInt(a.Size, 10)+" bytes)")
		}
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [cloudlab](https://github.com/nao1215/cloudlab)*")
}

// escapeCell keeps a value on one table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
