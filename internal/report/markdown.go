package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/webnoise/internal/model"
)

// MarkdownWriter outputs run reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. Mermaid chart embedding for the status distribution
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeStatusDistribution(md, report)
	w.writeVisits(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("Webnoise Run Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", report.StartTime.Format("2006-01-02 15:04:05 MST")},
			{"Ended", report.EndTime.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", report.Elapsed().Round(time.Second).String()},
			{"Outcome", w.outcomeText(report)},
		},
	})
	md.PlainText("")
}

// outcomeText returns the outcome cell text.
func (w *MarkdownWriter) outcomeText(report *model.RunReport) string {
	switch report.Outcome {
	case model.OutcomeTimedOut:
		return "⏱️ Timed out (budget elapsed)"
	case model.OutcomeStopped:
		return "🛑 Stopped (external signal)"
	default:
		return "❓ Unknown"
	}
}

// writeSummary writes the traffic counters section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Traffic Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Iterations", strconv.Itoa(report.Iterations)},
			{"Pages fetched", strconv.Itoa(report.PagesFetched)},
			{"Fetch errors", strconv.Itoa(report.FetchErrors)},
			{"Links discovered", strconv.Itoa(report.LinksDiscovered)},
			{"Seed resets", strconv.Itoa(report.SeedResets)},
		},
	})
	md.PlainText("")
}

// writeStatusDistribution writes the status breakdown as a table plus a
// mermaid pie chart.
func (w *MarkdownWriter) writeStatusDistribution(md *markdown.Markdown, report *model.RunReport) {
	counts := report.StatusCounts()
	if len(counts) == 0 {
		return
	}

	md.H2("Status Distribution")
	md.PlainText("")

	codes := sortedStatusCodes(counts)

	rows := make([][]string, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, []string{statusLabel(code), strconv.Itoa(counts[code])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows:   rows,
	})

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("HTTP Status Distribution"),
		piechart.WithShowData(true),
	)
	for _, code := range codes {
		chart.LabelAndIntValue(statusLabel(code), uint64(counts[code]))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeVisits writes the ordered visit history.
func (w *MarkdownWriter) writeVisits(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Visit History")
	md.PlainText("")

	if len(report.Visits) == 0 {
		md.PlainText("No visits recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Visits))
	for _, v := range report.Visits {
		source := v.Source
		if source == "" {
			source = "(seed)"
		}
		rows = append(rows, []string{
			v.Time.Format("15:04:05"),
			"`" + v.URL + "`",
			source,
			statusLabel(v.StatusCode),
			strconv.Itoa(v.LinksFound),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Time", "URL", "Source", "Status", "Links"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webnoise](https://github.com/nao1215/webnoise)*")
}
