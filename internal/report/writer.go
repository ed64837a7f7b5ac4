package report

import (
	"io"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sitesnap/sitesnap/internal/model"
)

// Writer defines the interface for report output.
// Implementations write crawl results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the full report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteSummary outputs only the run summary.
	// This is useful for quick status output without the page listing.
	WriteSummary(summary *model.CrawlSummary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the run summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// summaryFor returns the report's summary, deriving a minimal one from
// the page list when the run never produced one.
func summaryFor(report *model.CrawlReport) *model.CrawlSummary {
	if report.Summary != nil {
		return report.Summary
	}

	summary := &model.CrawlSummary{
		RunID:     report.RunID,
		BaseScope: report.BaseScope,
		StartedAt: report.StartedAt,
	}
	if !report.FinishedAt.IsZero() {
		summary.Duration = report.FinishedAt.Sub(report.StartedAt)
	}
	for _, page := range report.Pages {
		if page.Status == model.StatusSuccess {
			summary.PagesVisited++
		} else {
			summary.PagesFailed++
		}
	}
	if report.ErrorMessage != "" {
		summary.SetPhase(model.PhaseFailed)
	} else {
		summary.SetPhase(model.PhaseDone)
	}
	summary.SetTermination(model.TerminationFrontierExhausted)
	return summary
}

// prettyLabel turns a serialized identifier like "frontier_exhausted"
// into a display label like "Frontier Exhausted".
func prettyLabel(s string) string {
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// pagesWithStatus returns the report's pages with the given status, in
// completion order.
func pagesWithStatus(report *model.CrawlReport, status model.PageStatus) []*model.CaptureResult {
	var pages []*model.CaptureResult
	for _, page := range report.Pages {
		if page.Status == status {
			pages = append(pages, page)
		}
	}
	return pages
}

// sortedReasons returns the exclusion reasons in stable alphabetical
// order so report output doesn't shuffle between runs.
func sortedReasons(byReason map[string]int) []string {
	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	return reasons
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
