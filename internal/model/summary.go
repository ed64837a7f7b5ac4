package model

import "time"

// TerminationReason explains why a crawl run ended.
type TerminationReason int

const (
	// TerminationFrontierExhausted means every reachable in-scope URL was
	// processed. This is the normal end of a run.
	TerminationFrontierExhausted TerminationReason = iota

	// TerminationCancelled means the operator or a parent context cancelled
	// the run and the drain completed within the grace period.
	TerminationCancelled

	// TerminationAuthFailed means the login could not be established and the
	// run never reached the crawling phase.
	TerminationAuthFailed

	// TerminationGraceExpired means in-flight tasks did not finish within the
	// grace period after cancellation and were abandoned.
	TerminationGraceExpired

	// TerminationPageLimit means the optional max-pages cap stopped the run.
	TerminationPageLimit
)

// String returns the serialized identifier for the termination reason.
func (t TerminationReason) String() string {
	switch t {
	case TerminationFrontierExhausted:
		return "frontier_exhausted"
	case TerminationCancelled:
		return "cancelled"
	case TerminationAuthFailed:
		return "auth_failed"
	case TerminationGraceExpired:
		return "grace_expired"
	case TerminationPageLimit:
		return "page_limit"
	default:
		return "unknown"
	}
}

// CrawlSummary is the terminal accounting for one crawl run.
// A run always produces a summary, even when it fails or is cancelled.
type CrawlSummary struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// BaseScope is the scheme+host boundary the crawl was confined to.
	BaseScope string `json:"base_scope"`

	// StartedAt is when the run began (before authentication).
	StartedAt time.Time `json:"started_at"`

	// Duration is the total wall-clock time of the run.
	Duration time.Duration `json:"duration_ns"`

	// PagesVisited counts successfully captured pages.
	PagesVisited int `json:"pages_visited"`

	// PagesFailed counts pages whose render attempts all failed.
	PagesFailed int `json:"pages_failed"`

	// PagesExcluded counts URLs the classifier rejected (out of scope,
	// beyond the depth bound, pattern-excluded, or unparseable).
	PagesExcluded int `json:"pages_excluded"`

	// Duplicates counts URLs discovered again after already being enqueued.
	Duplicates int `json:"duplicates"`

	// ExcludedByReason breaks PagesExcluded down by rejection reason.
	ExcludedByReason map[string]int `json:"excluded_by_reason,omitempty"`

	// SessionRefreshes counts mid-crawl re-logins.
	SessionRefreshes int `json:"session_refreshes"`

	// Phase is the terminal orchestrator phase (Done or Failed).
	Phase Phase `json:"phase"`

	// PhaseText is the human-readable phase for serialized output.
	PhaseText string `json:"phase_text"`

	// Termination is why the run ended.
	Termination TerminationReason `json:"termination"`

	// TerminationText is the serialized identifier of Termination.
	TerminationText string `json:"termination_text"`

	// OutputDir is the run directory captures were written to.
	OutputDir string `json:"output_dir,omitempty"`
}

// TotalProcessed returns the number of tasks that reached a worker.
func (s *CrawlSummary) TotalProcessed() int {
	return s.PagesVisited + s.PagesFailed
}

// SetPhase records the terminal phase and keeps the text form in sync.
func (s *CrawlSummary) SetPhase(p Phase) {
	s.Phase = p
	s.PhaseText = p.String()
}

// SetTermination records the termination reason and keeps the text form in sync.
func (s *CrawlSummary) SetTermination(t TerminationReason) {
	s.Termination = t
	s.TerminationText = t.String()
}
