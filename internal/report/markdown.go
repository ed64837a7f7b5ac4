package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/sitesnap/sitesnap/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	summary := summaryFor(report)
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report, summary)
	w.writeSummary(md, summary)
	w.writeCapturedPages(md, report)
	w.writeFailedPages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs only the run summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Sitesnap Crawl Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Base Scope", "`" + summary.BaseScope + "`"},
			{"Run ID", "`" + summary.RunID + "`"},
			{"Crawl Date", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration.Round(time.Millisecond).String()},
		},
	})
	md.PlainText("")

	w.writeSummary(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport, summary *model.CrawlSummary) {
	md.H1("Sitesnap Crawl Report")
	md.PlainText("")

	// Basic info table
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Base Scope", "`" + report.BaseScope + "`"},
			{"Run ID", "`" + report.RunID + "`"},
			{"Start URL", "`" + report.StartURL + "`"},
			{"Crawl Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration.Round(time.Millisecond).String()},
			{"Max Depth", strconv.Itoa(report.MaxDepth)},
			{"Workers", strconv.Itoa(report.Concurrency)},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.CrawlReport) string {
	if report.ErrorMessage != "" {
		return "❌ Failed - " + report.ErrorMessage
	}
	if report.Cancelled {
		return "⚠️ Cancelled (partial results)"
	}
	return "✅ Complete"
}

// writeSummary writes the run accounting section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Crawl Summary")
	md.PlainText("")

	// Summary table
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"🟢 Pages captured", strconv.Itoa(summary.PagesVisited)},
			{"🔴 Pages failed", strconv.Itoa(summary.PagesFailed)},
			{"🚫 URLs excluded", strconv.Itoa(summary.PagesExcluded)},
			{"🔁 Duplicates seen", strconv.Itoa(summary.Duplicates)},
			{"🔑 Session refreshes", strconv.Itoa(summary.SessionRefreshes)},
			{"**Termination**", "**" + prettyLabel(summary.TerminationText) + "**"},
		},
	})
	md.PlainText("")

	// Add pie chart if anything was processed
	if summary.TotalProcessed()+summary.PagesExcluded+summary.Duplicates > 0 {
		w.writePieChart(md, summary)
	}

	// Add alert based on how the run ended
	w.writeAlert(md, summary)

	if len(summary.ExcludedByReason) > 0 {
		rows := make([][]string, 0, len(summary.ExcludedByReason))
		for _, reason := range sortedReasons(summary.ExcludedByReason) {
			rows = append(rows, []string{prettyLabel(reason), strconv.Itoa(summary.ExcludedByReason[reason])})
		}
		md.H3("Excluded URLs by Reason")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Reason", "Count"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart of page outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.CrawlSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcomes"),
		piechart.WithShowData(true),
	)

	if summary.PagesVisited > 0 {
		chart.LabelAndIntValue("Captured", uint64(summary.PagesVisited))
	}
	if summary.PagesFailed > 0 {
		chart.LabelAndIntValue("Failed", uint64(summary.PagesFailed))
	}
	if summary.PagesExcluded > 0 {
		chart.LabelAndIntValue("Excluded", uint64(summary.PagesExcluded))
	}
	if summary.Duplicates > 0 {
		chart.LabelAndIntValue("Duplicates", uint64(summary.Duplicates))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on how the run ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.CrawlSummary) {
	switch {
	case summary.Termination == model.TerminationAuthFailed:
		md.Caution("Authentication failed. No pages were crawled; check the login configuration and credentials.")
	case summary.Termination == model.TerminationGraceExpired:
		md.Warningf(
			"The run was cancelled and %d in-flight page(s) did not finish within the grace period.",
			summary.PagesFailed,
		)
	case summary.Termination == model.TerminationCancelled:
		md.Important("The run was cancelled; the report holds partial results.")
	case summary.Termination == model.TerminationPageLimit:
		md.Importantf("The page limit stopped the run after %d capture(s).", summary.PagesVisited)
	case summary.PagesFailed > 0:
		md.Warningf(
			"%d page(s) failed every render attempt. Their URLs are listed in the failed pages section.",
			summary.PagesFailed,
		)
	default:
		md.Tip("Every reachable in-scope page was captured.")
	}
	md.PlainText("")
}

// writeCapturedPages writes the successful captures as a table.
func (w *MarkdownWriter) writeCapturedPages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Captured Pages")
	md.PlainText("")

	captured := pagesWithStatus(report, model.StatusSuccess)
	if len(captured) == 0 {
		md.PlainText("No pages were captured.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(captured))
	for i, page := range captured {
		title := page.Title
		if title == "" {
			title = "-"
		}
		code := "-"
		if page.StatusCode != 0 {
			code = strconv.Itoa(page.StatusCode)
		}

		rows[i] = []string{
			"`" + truncateString(page.URL, 60) + "`",
			strconv.Itoa(page.Depth),
			truncateString(title, 50),
			code,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Title", "HTTP"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailedPages writes the failed captures with their reasons.
func (w *MarkdownWriter) writeFailedPages(md *markdown.Markdown, report *model.CrawlReport) {
	failed := pagesWithStatus(report, model.StatusFailed)
	if len(failed) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")

	rows := make([][]string, len(failed))
	for i, page := range failed {
		rows[i] = []string{
			"`" + truncateString(page.URL, 60) + "`",
			strconv.Itoa(page.Attempts),
			truncateString(page.FailReason, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Attempts", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitesnap](https://github.com/sitesnap/sitesnap)*")
}
