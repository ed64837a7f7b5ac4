package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sitesnap/sitesnap/internal/model"
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

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose enables per-page detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	summary := summaryFor(report)

	var sb strings.Builder

	w.writeHeader(&sb, report, summary)
	w.writeSummary(&sb, summary)
	w.writeCapturedPages(&sb, report)
	w.writeFailedPages(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs only the run summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb)
	sb.WriteString(fmt.Sprintf("Base Scope:   %s\n", summary.BaseScope))
	sb.WriteString(fmt.Sprintf("Run ID:       %s\n", summary.RunID))
	sb.WriteString(fmt.Sprintf("Crawl Date:   %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString("\n")
	w.writeSummary(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeBanner writes the report title block.
func (w *SimpleWriter) writeBanner(sb *strings.Builder) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       SITESNAP CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport, summary *model.CrawlSummary) {
	w.writeBanner(sb)

	sb.WriteString(fmt.Sprintf("Base Scope:   %s\n", report.BaseScope))
	sb.WriteString(fmt.Sprintf("Run ID:       %s\n", report.RunID))
	sb.WriteString(fmt.Sprintf("Start URL:    %s\n", report.StartURL))
	if report.LoginURL != "" {
		sb.WriteString(fmt.Sprintf("Login URL:    %s\n", report.LoginURL))
	}
	sb.WriteString(fmt.Sprintf("Crawl Date:   %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:     %s\n", summary.Duration.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Max Depth:    %d\n", report.MaxDepth))
	sb.WriteString(fmt.Sprintf("Workers:      %d\n", report.Concurrency))

	switch {
	case report.ErrorMessage != "":
		sb.WriteString(fmt.Sprintf("Status:       FAILED - %s\n", report.ErrorMessage))
	case report.Cancelled:
		sb.WriteString("Status:       CANCELLED (partial results)\n")
	default:
		sb.WriteString("Status:       Complete\n")
	}

	sb.WriteString("\n")
}

// writeSummary writes the run accounting section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, summary *model.CrawlSummary) {
	w.writeDivider(sb, "CRAWL SUMMARY")

	sb.WriteString(fmt.Sprintf("  Pages captured:    %d\n", summary.PagesVisited))
	sb.WriteString(fmt.Sprintf("  Pages failed:      %d\n", summary.PagesFailed))
	sb.WriteString(fmt.Sprintf("  URLs excluded:     %d\n", summary.PagesExcluded))
	sb.WriteString(fmt.Sprintf("  Duplicates seen:   %d\n", summary.Duplicates))
	sb.WriteString(fmt.Sprintf("  Session refreshes: %d\n", summary.SessionRefreshes))
	sb.WriteString(fmt.Sprintf("  Termination:       %s\n", prettyLabel(summary.TerminationText)))
	if summary.OutputDir != "" {
		sb.WriteString(fmt.Sprintf("  Captures:          %s\n", summary.OutputDir))
	}
	sb.WriteString("\n")

	if len(summary.ExcludedByReason) > 0 {
		sb.WriteString("  Excluded by reason:\n")
		for _, reason := range sortedReasons(summary.ExcludedByReason) {
			sb.WriteString(fmt.Sprintf("    %-18s %d\n", prettyLabel(reason)+":", summary.ExcludedByReason[reason]))
		}
		sb.WriteString("\n")
	}
}

// writeCapturedPages writes the successful captures, in completion order.
func (w *SimpleWriter) writeCapturedPages(sb *strings.Builder, report *model.CrawlReport) {
	captured := pagesWithStatus(report, model.StatusSuccess)
	if len(captured) == 0 && !w.showEmpty {
		return
	}

	w.writeDivider(sb, "CAPTURED PAGES")

	if len(captured) == 0 {
		sb.WriteString("  No pages captured\n")
	}
	for _, page := range captured {
		title := page.Title
		if title == "" {
			title = "-"
		}
		sb.WriteString(fmt.Sprintf("  [%d] %s\n", page.Depth, page.URL))
		sb.WriteString(fmt.Sprintf("      %s\n", truncateString(title, 60)))
		if w.verbose {
			if page.FinalURL != "" && page.FinalURL != page.URL {
				sb.WriteString(fmt.Sprintf("      Final URL: %s\n", page.FinalURL))
			}
			if page.StatusCode != 0 {
				sb.WriteString(fmt.Sprintf("      HTTP %d, %d attempt(s)\n", page.StatusCode, page.Attempts))
			}
			if page.ContentHash != "" {
				sb.WriteString(fmt.Sprintf("      Hash: %s\n", truncateString(page.ContentHash, 16)))
			}
			if page.HTMLFile != "" {
				sb.WriteString(fmt.Sprintf("      File: %s\n", page.HTMLFile))
			}
		}
	}
	sb.WriteString("\n")
}

// writeFailedPages writes captures whose render attempts all failed.
func (w *SimpleWriter) writeFailedPages(sb *strings.Builder, report *model.CrawlReport) {
	failed := pagesWithStatus(report, model.StatusFailed)
	if len(failed) == 0 && !w.showEmpty {
		return
	}

	w.writeDivider(sb, "FAILED PAGES")

	if len(failed) == 0 {
		sb.WriteString("  No failures\n")
	}
	for _, page := range failed {
		sb.WriteString(fmt.Sprintf("  [!] %s\n", page.URL))
		sb.WriteString(fmt.Sprintf("      Reason: %s (%d attempt(s))\n", page.FailReason, page.Attempts))
		if w.verbose && page.Referrer != "" {
			sb.WriteString(fmt.Sprintf("      Linked from: %s\n", page.Referrer))
		}
	}
	sb.WriteString("\n")
}

// writeDivider writes a section divider with its title.
func (w *SimpleWriter) writeDivider(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitesnap\n")
	sb.WriteString("https://github.com/sitesnap/sitesnap\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
