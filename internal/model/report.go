package model

import (
	"sync"
	"time"
)

// CrawlReport is the full record of one crawl run.
// It is the unit passed through the pipeline, persisted to the database,
// and rendered by the report writers.
//
// Design decision: We use a single struct covering configuration echo,
// captures, and summary rather than several small ones to simplify
// serialization and database storage. Pages are appended concurrently by
// workers, so mutation goes through mutex-guarded methods.
type CrawlReport struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// BaseScope is the scheme+host boundary of the crawl.
	BaseScope string `json:"base_scope"`

	// StartURL is the seed URL the crawl started from.
	StartURL string `json:"start_url"`

	// LoginURL is the page where authentication was performed.
	LoginURL string `json:"login_url,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run reached a terminal phase.
	FinishedAt time.Time `json:"finished_at"`

	// MaxDepth echoes the configured depth bound for this run.
	MaxDepth int `json:"max_depth"`

	// Concurrency echoes the configured worker count.
	Concurrency int `json:"concurrency"`

	// ExcludePatterns echoes the configured exclusion patterns, in order.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// Pages holds every capture recorded during the run, success and failure
	// alike, in completion order. Bodies are released after storage; only
	// metadata survives here.
	Pages []*CaptureResult `json:"pages,omitempty"`

	// Summary is the terminal accounting. Always set once the run ends.
	Summary *CrawlSummary `json:"summary,omitempty"`

	// Cancelled is true when the run was interrupted and drained.
	Cancelled bool `json:"cancelled,omitempty"`

	// Error holds the fatal error for a failed run.
	Error error `json:"-"` // Excluded from JSON

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// mu guards Pages against concurrent worker appends.
	mu sync.Mutex
}

// NewCrawlReport creates a report for the given run.
func NewCrawlReport(runID, baseScope, startURL string) *CrawlReport {
	return &CrawlReport{
		RunID:     runID,
		BaseScope: baseScope,
		StartURL:  startURL,
		StartedAt: time.Now(),
	}
}

// AddPage appends a capture to the report. Safe for concurrent use.
func (r *CrawlReport) AddPage(capture *CaptureResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pages = append(r.Pages, capture)
}

// PageCount returns the number of recorded captures. Safe for concurrent use.
func (r *CrawlReport) PageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Pages)
}

// FindPage returns the capture for the given normalized URL, or nil.
func (r *CrawlReport) FindPage(url string) *CaptureResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Pages {
		if p.URL == url {
			return p
		}
	}
	return nil
}

// SetError records the fatal error and keeps the text form in sync.
func (r *CrawlReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Finish stamps the end of the run and attaches the summary.
func (r *CrawlReport) Finish(summary *CrawlSummary) {
	r.FinishedAt = time.Now()
	r.Summary = summary
	if summary != nil {
		r.Cancelled = summary.Termination == TerminationCancelled ||
			summary.Termination == TerminationGraceExpired
	}
}
