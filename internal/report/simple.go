package report

import (
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/webnoise/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables the per-visit listing in addition to the summary.
	verbose bool

	// printer formats counts with locale-aware grouping; an overnight run
	// fetches tens of thousands of pages and 52,481 reads better than 52481.
	printer *message.Printer
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the full visit listing in the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeStatusDistribution(&sb, report)
	if w.verbose {
		w.writeVisits(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         WEBNOISE RUN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(w.printer.Sprintf("Started:  %s\n", report.StartTime.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(w.printer.Sprintf("Ended:    %s\n", report.EndTime.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(w.printer.Sprintf("Elapsed:  %s\n", report.Elapsed().Round(time.Second)))
	sb.WriteString(w.printer.Sprintf("Outcome:  %s\n", strings.ToUpper(report.Outcome.String())))
	sb.WriteString("\n")
}

// writeSummary writes the run counters section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("TRAFFIC SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(w.printer.Sprintf("  Iterations:       %d\n", report.Iterations))
	sb.WriteString(w.printer.Sprintf("  Pages fetched:    %d\n", report.PagesFetched))
	sb.WriteString(w.printer.Sprintf("  Fetch errors:     %d\n", report.FetchErrors))
	sb.WriteString(w.printer.Sprintf("  Links discovered: %d\n", report.LinksDiscovered))
	sb.WriteString(w.printer.Sprintf("  Seed resets:      %d\n", report.SeedResets))
	sb.WriteString("\n")
}

// writeStatusDistribution writes the HTTP status code breakdown.
func (w *SimpleWriter) writeStatusDistribution(sb *strings.Builder, report *model.RunReport) {
	counts := report.StatusCounts()
	if len(counts) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("STATUS DISTRIBUTION\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, code := range sortedStatusCodes(counts) {
		sb.WriteString(w.printer.Sprintf("  %-13s %d\n", statusLabel(code)+":", counts[code]))
	}
	sb.WriteString("\n")
}

// writeVisits writes the ordered visit history.
func (w *SimpleWriter) writeVisits(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("VISIT HISTORY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, v := range report.Visits {
		marker := "+"
		if v.Failed {
			marker = "x"
		}
		sb.WriteString(w.printer.Sprintf("  [%s] %s %s (%s)\n",
			marker, v.Time.Format("15:04:05"), v.URL, statusLabel(v.StatusCode)))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by webnoise\n")
	sb.WriteString("https://github.com/nao1215/webnoise\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
