package report

import (
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/ironsheep/leafmask/internal/batch"
)

// MarkdownWriter writes summaries as GitHub flavoured Markdown.
type MarkdownWriter struct {
	output io.Writer
	now    func() time.Time
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output, now: time.Now}
}

// Write renders s.
func (w *MarkdownWriter) Write(s *batch.Summary) (int, error) {
	doc := NewDocument(s, w.now())
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, doc)
	w.writeImages(md, doc)
	w.writeFeatures(md, doc)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by leafmask on %s*", doc.Generated.Format("2006-01-02 15:04:05 MST"))

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, doc *Document) {
	md.H1("leafmask run")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Images", strconv.Itoa(doc.Total)},
			{"Succeeded", strconv.Itoa(doc.Succeeded)},
			{"Failed", strconv.Itoa(doc.Failed)},
			{"Skipped", strconv.Itoa(doc.Skipped)},
			{"Elapsed", (time.Duration(doc.ElapsedMS) * time.Millisecond).String()},
		},
	})
	md.PlainText("")

	switch {
	case doc.Skipped > 0:
		md.Cautionf("The run was cancelled; %d image(s) were not processed.", doc.Skipped)
	case doc.Failed > 0:
		md.Warningf("%d of %d image(s) failed and are left out of the feature table.", doc.Failed, doc.Total)
	default:
		md.Tip("Every image was processed.")
	}
	md.PlainText("")

	if len(doc.ErrorCounts) > 0 {
		w.writeErrorChart(md, doc)
	}
}

func (w *MarkdownWriter) writeErrorChart(md *markdown.Markdown, doc *Document) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Failures by kind"),
		piechart.WithShowData(true),
	)
	for _, kind := range slices.Sorted(maps.Keys(doc.ErrorCounts)) {
		chart.LabelAndIntValue(kind, uint64(doc.ErrorCounts[kind]))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeImages(md *markdown.Markdown, doc *Document) {
	md.H2("Images")
	md.PlainText("")
	if len(doc.Images) == 0 {
		md.PlainText("No image was processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(doc.Images))
	for i, e := range doc.Images {
		status := "ok"
		if !e.Success {
			status = "failed"
			if len(e.Errors) > 0 {
				status = e.Errors[0].Kind
			}
		}
		rows[i] = []string{
			"`" + e.Path + "`",
			status,
			strconv.FormatInt(e.ElapsedMS, 10),
			strconv.Itoa(e.Kept) + "/" + strconv.Itoa(e.Hulls),
			truncateString(e.Message, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Image", "Status", "ms", "Kept", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFeatures(md *markdown.Markdown, doc *Document) {
	md.H2("Features")
	md.PlainText("")
	t := doc.Features
	if len(t.Rows) == 0 {
		md.PlainText("No features were measured.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := []string{"`" + r.Path + "`"}
		for j, v := range r.Values {
			if !r.Present[j] {
				row = append(row, "-")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'g', 6, 64))
		}
		rows[i] = row
	}
	md.Table(markdown.TableSet{
		Header: append([]string{"Image"}, t.Columns...),
		Rows:   rows,
	})
	md.PlainText("")
}

// truncateString truncates s to maxLen bytes with an ellipsis. Newlines are
// flattened so the text fits a table cell.
func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
