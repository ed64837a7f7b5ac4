package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sitesnap/sitesnap/internal/config"
	"github.com/sitesnap/sitesnap/internal/crawler"
	"github.com/sitesnap/sitesnap/internal/database"
	"github.com/spf13/cobra"
)

// Constants for coverage direction and summary messages.
const (
	coverageDirectionGrew      = "grew"
	coverageDirectionShrank    = "shrank"
	coverageDirectionUnchanged = "unchanged"
	noPagesMessage             = "No pages"
)

// NewCompareCmd creates the compare command.
// This command compares crawl runs recorded in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [base-url]",
		Short: "Compare crawl runs recorded for a site",
		Long: `Compare displays differences between two crawl runs of the same site.

This command retrieves recorded runs from the database and shows:
- Pages that appeared since the previous run
- Pages that disappeared
- Pages whose rendered content changed (by content hash)
- Pages whose capture status flipped between success and failure

The comparison requires at least two recorded runs for the specified
base URL. Use 'sitesnap crawl' to perform crawls; every run is recorded.

Examples:
  # Compare the latest two runs for a site
  sitesnap compare https://app.example.com

  # List all recorded runs for a site
  sitesnap compare --list https://app.example.com

  # Compare the latest run with a specific earlier run
  sitesnap compare --with-run 4f1c9b2e https://app.example.com

  # Output comparison in JSON format
  sitesnap compare --json https://app.example.com

  # List all sites in the database
  sitesnap compare --list-sites`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List recorded runs for the specified base URL")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List all sites recorded in the database")

	// Comparison target flags
	cmd.Flags().StringP("with-run", "r", "",
		"Compare with a specific run by ID or ID prefix (use --list to see run IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the oldest run at or after this date (YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Handle --list-sites flag first (requires database but no base URL)
	listSites, err := cmd.Flags().GetBool("list-sites")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database so validation
	// failures don't take the writer lock
	var baseScope string
	if !listSites {
		if len(args) == 0 {
			return errors.New("base URL is required (use --list-sites to see recorded sites)")
		}

		baseScope, err = scopeFor(args[0])
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
	}

	// Runs are recorded under the XDG data directory
	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Handle --list-sites flag
	if listSites {
		return listRecordedSites(ctx, db)
	}

	// Handle --list flag
	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRunHistory(ctx, db, baseScope)
	}

	// Get output format flags
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	withRun, err := cmd.Flags().GetString("with-run")
	if err != nil {
		return err
	}
	since, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}
	if withRun != "" && since != "" {
		return errors.New("--with-run and --since are mutually exclusive")
	}

	// Perform comparison
	return runComparison(ctx, db, baseScope, withRun, since, jsonOutput, markdownOutput)
}

// scopeFor normalizes a base URL to the scheme+host scope that runs are
// recorded under, using the same normalization the crawler applies.
func scopeFor(rawURL string) (string, error) {
	classifier, err := crawler.NewClassifier(rawURL, 0, nil)
	if err != nil {
		return "", err
	}
	return classifier.Scope(), nil
}

// listRecordedSites lists every base scope with at least one recorded run.
func listRecordedSites(ctx context.Context, db *database.CrawlDB) error {
	scopes, err := db.ListScopes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(scopes) == 0 {
		fmt.Println("No recorded runs found in the database.")
		fmt.Println("\nUse 'sitesnap crawl <base-url>' to crawl a site.")
		return nil
	}

	fmt.Printf("Recorded sites (%d):\n\n", len(scopes))
	for _, scope := range scopes {
		fmt.Printf("  • %s\n", scope)
	}
	fmt.Println("\nUse 'sitesnap compare --list <base-url>' to see run history for a site.")

	return nil
}

// listRunHistory lists all recorded runs for a base scope.
func listRunHistory(ctx context.Context, db *database.CrawlDB, baseScope string) error {
	runs, err := db.GetRunHistory(ctx, baseScope)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Printf("No run history found for %s\n", baseScope)
		fmt.Println("\nUse 'sitesnap crawl' to crawl this site.")
		return nil
	}

	fmt.Printf("Run history for %s (%d runs):\n\n", baseScope, len(runs))
	fmt.Printf("  %-10s  %-20s  %-20s  %s\n", "Run ID", "Date", "Termination", "Pages")
	fmt.Println("  " + strings.Repeat("-", 70))

	for _, meta := range runs {
		fmt.Printf("  %-10s  %-20s  %-20s  %s\n",
			shortRunID(meta.RunID),
			meta.StartedAt.Format("2006-01-02 15:04:05"),
			meta.Termination,
			formatPageCounts(meta.PagesVisited, meta.PagesFailed),
		)
	}

	fmt.Println("\nUse 'sitesnap compare <base-url>' to compare the latest two runs.")
	fmt.Println("Use 'sitesnap compare --with-run <id> <base-url>' to compare with a specific run.")

	return nil
}

// shortRunID abbreviates a run UUID for tabular display.
func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// formatPageCounts formats visited/failed counts into a short summary.
func formatPageCounts(visited, failed int) string {
	if visited == 0 && failed == 0 {
		return noPagesMessage
	}
	if failed == 0 {
		return fmt.Sprintf("%d captured", visited)
	}
	return fmt.Sprintf("%d captured, %d failed", visited, failed)
}

// runComparison performs the actual comparison between two recorded runs.
func runComparison(ctx context.Context, db *database.CrawlDB, baseScope, withRun, since string, jsonOutput, markdownOutput bool) error {
	runs, err := db.GetRunHistory(ctx, baseScope)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		return fmt.Errorf("no run history found for %s", baseScope)
	}

	if len(runs) < 2 {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	// The latest run is always the current one
	currentRun := runs[0]

	var previousRun database.RunMetadata
	switch {
	case withRun != "":
		// Find the run matching the given ID or prefix
		found := false
		for _, meta := range runs[1:] {
			if meta.RunID == withRun || strings.HasPrefix(meta.RunID, withRun) {
				previousRun = meta
				found = true
				break
			}
		}
		if !found {
			if currentRun.RunID == withRun || strings.HasPrefix(currentRun.RunID, withRun) {
				return fmt.Errorf("run %s is the latest run; pick an earlier one to compare against", withRun)
			}
			return fmt.Errorf("run %s not found for %s", withRun, baseScope)
		}
	case since != "":
		cutoff, err := time.Parse("2006-01-02", since)
		if err != nil {
			return fmt.Errorf("invalid --since date %q (expected YYYY-MM-DD): %w", since, err)
		}
		// History is newest first; walk from the oldest run forward to
		// find the first one at or after the cutoff
		found := false
		for i := len(runs) - 1; i >= 1; i-- {
			if !runs[i].StartedAt.Before(cutoff) {
				previousRun = runs[i]
				found = true
				break
			}
		}
		if !found {
			if !currentRun.StartedAt.Before(cutoff) {
				return fmt.Errorf("only the latest run is at or after %s; pick an earlier date", since)
			}
			return fmt.Errorf("no run at or after %s for %s", since, baseScope)
		}
	default:
		// Default: compare with the previous run
		previousRun = runs[1]
	}

	previousPages, err := db.GetRunPages(ctx, previousRun.RunID)
	if err != nil {
		return fmt.Errorf("failed to get pages for run %s: %w", previousRun.RunID, err)
	}
	currentPages, err := db.GetRunPages(ctx, currentRun.RunID)
	if err != nil {
		return fmt.Errorf("failed to get pages for run %s: %w", currentRun.RunID, err)
	}

	comparison := compareRuns(baseScope, previousRun, currentRun, previousPages, currentPages)

	// Output the result
	if jsonOutput {
		return outputComparisonJSON(comparison)
	}
	if markdownOutput {
		return outputComparisonMarkdown(comparison)
	}
	return outputComparisonText(comparison)
}

// ComparisonResult holds the result of comparing two crawl runs.
type ComparisonResult struct {
	// BaseScope is the scheme+host boundary both runs were confined to.
	BaseScope string `json:"base_scope"`

	// PreviousRun contains metadata about the earlier run.
	PreviousRun RunInfo `json:"previous_run"`

	// CurrentRun contains metadata about the latest run.
	CurrentRun RunInfo `json:"current_run"`

	// NewPages are pages present in the current run but not the previous one.
	NewPages []PageChange `json:"new_pages,omitempty"`

	// RemovedPages are pages present in the previous run but not the current one.
	RemovedPages []PageChange `json:"removed_pages,omitempty"`

	// ChangedPages are pages whose rendered content or capture status changed.
	ChangedPages []PageChange `json:"changed_pages,omitempty"`

	// UnchangedCount is the number of pages identical between the runs.
	UnchangedCount int `json:"unchanged_count"`

	// Coverage describes how the capture coverage moved between the runs.
	Coverage CoverageChange `json:"coverage"`
}

// RunInfo contains metadata about one run for comparison display.
type RunInfo struct {
	// RunID is the run's UUID.
	RunID string `json:"run_id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Termination is why the run ended.
	Termination string `json:"termination"`

	// PagesVisited is the number of successfully captured pages.
	PagesVisited int `json:"pages_visited"`

	// PagesFailed is the number of pages whose capture failed.
	PagesFailed int `json:"pages_failed"`
}

// PageChange describes one page's difference between two runs.
type PageChange struct {
	// URL is the normalized page URL.
	URL string `json:"url"`

	// Title is the captured page title, when available.
	Title string `json:"title,omitempty"`

	// Depth is the breadth-first depth the page was discovered at.
	Depth int `json:"depth"`

	// Detail explains the change (e.g. "content changed",
	// "SUCCESS -> FAILED"). Empty for added and removed pages.
	Detail string `json:"detail,omitempty"`
}

// CoverageChange describes the movement in capture coverage between runs.
type CoverageChange struct {
	// Direction is "grew", "shrank", or "unchanged", based on the number
	// of successfully captured pages.
	Direction string `json:"direction"`

	// VisitedDelta is the change in successfully captured pages.
	VisitedDelta int `json:"visited_delta"`

	// FailedDelta is the change in failed pages.
	FailedDelta int `json:"failed_delta"`
}

// compareRuns diffs two runs' page indexes and builds the comparison result.
func compareRuns(baseScope string, previous, current database.RunMetadata, previousPages, currentPages []database.PageRecord) *ComparisonResult {
	result := &ComparisonResult{
		BaseScope:   baseScope,
		PreviousRun: runInfo(previous),
		CurrentRun:  runInfo(current),
	}

	previousByURL := make(map[string]database.PageRecord, len(previousPages))
	for _, page := range previousPages {
		previousByURL[page.URL] = page
	}

	for _, page := range currentPages {
		before, exists := previousByURL[page.URL]
		if !exists {
			result.NewPages = append(result.NewPages, pageChange(page, ""))
			continue
		}

		if detail := describeChange(before, page); detail != "" {
			result.ChangedPages = append(result.ChangedPages, pageChange(page, detail))
		} else {
			result.UnchangedCount++
		}
		delete(previousByURL, page.URL)
	}

	// Whatever remains in the previous index disappeared. GetRunPages
	// returns pages ordered by URL, so walk the original slice to keep
	// the output deterministic.
	for _, page := range previousPages {
		if _, gone := previousByURL[page.URL]; gone {
			result.RemovedPages = append(result.RemovedPages, pageChange(page, ""))
		}
	}

	result.Coverage = calculateCoverage(result.PreviousRun, result.CurrentRun)

	return result
}

// describeChange explains how a page differs between two runs, or returns
// an empty string when it is unchanged.
func describeChange(before, after database.PageRecord) string {
	if before.Status != after.Status {
		return before.Status + " -> " + after.Status
	}
	// Only compare content for pages that rendered both times; failed
	// captures have no content hash
	if before.ContentHash != after.ContentHash {
		return "content changed"
	}
	return ""
}

// pageChange builds the display record for one differing page.
func pageChange(page database.PageRecord, detail string) PageChange {
	return PageChange{
		URL:    page.URL,
		Title:  page.Title,
		Depth:  page.Depth,
		Detail: detail,
	}
}

// runInfo extracts the display metadata for one run.
func runInfo(meta database.RunMetadata) RunInfo {
	return RunInfo{
		RunID:        meta.RunID,
		StartedAt:    meta.StartedAt,
		Termination:  meta.Termination,
		PagesVisited: meta.PagesVisited,
		PagesFailed:  meta.PagesFailed,
	}
}

// calculateCoverage calculates the coverage movement between two runs.
func calculateCoverage(previous, current RunInfo) CoverageChange {
	change := CoverageChange{
		VisitedDelta: current.PagesVisited - previous.PagesVisited,
		FailedDelta:  current.PagesFailed - previous.PagesFailed,
	}

	switch {
	case change.VisitedDelta > 0:
		change.Direction = coverageDirectionGrew
	case change.VisitedDelta < 0:
		change.Direction = coverageDirectionShrank
	default:
		change.Direction = coverageDirectionUnchanged
	}

	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(result *ComparisonResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(result *ComparisonResult) error {
	fmt.Printf("# Crawl Comparison: %s\n\n", result.BaseScope)

	// Coverage summary
	fmt.Println("## Summary")
	fmt.Printf("\n**Coverage:** %s\n\n", formatCoverageDirection(result.Coverage.Direction))

	// Run metadata table
	fmt.Println("| Metric | Previous | Current | Change |")
	fmt.Println("|--------|----------|---------|--------|")
	fmt.Printf("| Date | %s | %s | - |\n",
		result.PreviousRun.StartedAt.Format("2006-01-02 15:04"),
		result.CurrentRun.StartedAt.Format("2006-01-02 15:04"))
	fmt.Printf("| Captured | %d | %d | %s |\n",
		result.PreviousRun.PagesVisited,
		result.CurrentRun.PagesVisited,
		formatDelta(result.Coverage.VisitedDelta))
	fmt.Printf("| Failed | %d | %d | %s |\n",
		result.PreviousRun.PagesFailed,
		result.CurrentRun.PagesFailed,
		formatDelta(result.Coverage.FailedDelta))

	// New pages
	if len(result.NewPages) > 0 {
		fmt.Printf("\n## New Pages (%d)\n\n", len(result.NewPages))
		for _, page := range result.NewPages {
			fmt.Printf("- %s\n", formatPageLine(page))
		}
	}

	// Removed pages
	if len(result.RemovedPages) > 0 {
		fmt.Printf("\n## Removed Pages (%d)\n\n", len(result.RemovedPages))
		for _, page := range result.RemovedPages {
			fmt.Printf("- ~~%s~~\n", formatPageLine(page))
		}
	}

	// Changed pages
	if len(result.ChangedPages) > 0 {
		fmt.Printf("\n## Changed Pages (%d)\n\n", len(result.ChangedPages))
		for _, page := range result.ChangedPages {
			fmt.Printf("- %s: %s\n", formatPageLine(page), page.Detail)
		}
	}

	// Unchanged count
	if result.UnchangedCount > 0 {
		fmt.Printf("\n---\n\n*%d pages unchanged*\n", result.UnchangedCount)
	}

	return nil
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(result *ComparisonResult) error {
	fmt.Printf("Crawl Comparison: %s\n", result.BaseScope)
	fmt.Println(strings.Repeat("=", 60))

	// Coverage summary
	fmt.Printf("\nCoverage: %s\n", formatCoverageDirection(result.Coverage.Direction))

	// Run dates
	fmt.Printf("\nPrevious run: %s (%s)\n",
		result.PreviousRun.StartedAt.Format("2006-01-02 15:04:05"),
		shortRunID(result.PreviousRun.RunID))
	fmt.Printf("Current run:  %s (%s)\n",
		result.CurrentRun.StartedAt.Format("2006-01-02 15:04:05"),
		shortRunID(result.CurrentRun.RunID))

	// Summary table
	fmt.Println("\nPage Summary:")
	fmt.Printf("  %-10s  %-10s  %-10s  %-10s\n", "Outcome", "Previous", "Current", "Change")
	fmt.Println("  " + strings.Repeat("-", 45))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Captured",
		result.PreviousRun.PagesVisited, result.CurrentRun.PagesVisited,
		formatDelta(result.Coverage.VisitedDelta))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Failed",
		result.PreviousRun.PagesFailed, result.CurrentRun.PagesFailed,
		formatDelta(result.Coverage.FailedDelta))

	// New pages
	if len(result.NewPages) > 0 {
		fmt.Printf("\nNew Pages (%d):\n", len(result.NewPages))
		for _, page := range result.NewPages {
			fmt.Printf("  [+] %s\n", formatPageLine(page))
		}
	}

	// Removed pages
	if len(result.RemovedPages) > 0 {
		fmt.Printf("\nRemoved Pages (%d):\n", len(result.RemovedPages))
		for _, page := range result.RemovedPages {
			fmt.Printf("  [-] %s\n", formatPageLine(page))
		}
	}

	// Changed pages
	if len(result.ChangedPages) > 0 {
		fmt.Printf("\nChanged Pages (%d):\n", len(result.ChangedPages))
		for _, page := range result.ChangedPages {
			fmt.Printf("  [~] %s (%s)\n", formatPageLine(page), page.Detail)
		}
	}

	// Unchanged count
	if result.UnchangedCount > 0 {
		fmt.Printf("\nUnchanged: %d pages\n", result.UnchangedCount)
	}

	return nil
}

// formatPageLine formats one page for list output.
func formatPageLine(page PageChange) string {
	if page.Title != "" {
		return fmt.Sprintf("%s (depth %d, %q)", page.URL, page.Depth, page.Title)
	}
	return fmt.Sprintf("%s (depth %d)", page.URL, page.Depth)
}

// formatCoverageDirection formats the coverage direction for display.
func formatCoverageDirection(direction string) string {
	switch direction {
	case coverageDirectionGrew:
		return "GREW (more pages captured)"
	case coverageDirectionShrank:
		return "SHRANK (fewer pages captured)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
