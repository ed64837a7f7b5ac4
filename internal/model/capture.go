package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PageStatus describes the outcome of a capture attempt for one page.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and sorting. The String() method provides
// human-readable output when needed.
type PageStatus int

const (
	// StatusSuccess means the page rendered and its capture was recorded.
	StatusSuccess PageStatus = iota

	// StatusFailed means every render attempt for the page failed.
	// FailReason on the capture explains why.
	StatusFailed
)

// String returns a human-readable representation of the page status.
func (s PageStatus) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MaxHTMLSize is the maximum rendered HTML size to keep, in bytes.
// Larger documents are truncated to this size before hashing and storage.
const MaxHTMLSize = 5 * 1024 * 1024 // 5 MB

// CaptureResult holds everything captured for a single page visit.
//
// Design decision: We keep the rendered bodies and the capture metadata in
// one structure because:
// 1. The worker produces them together in a single render pass
// 2. The storage sink needs bodies and metadata to land in the same entry
// 3. The content hash enables change detection between runs
type CaptureResult struct {
	// URL is the normalized URL that was rendered.
	URL string `json:"url"`

	// FinalURL is the URL the browser settled on after redirects.
	// Only set when it differs from URL.
	FinalURL string `json:"final_url,omitempty"`

	// Depth is the breadth-first depth at which the page was discovered.
	Depth int `json:"depth"`

	// Referrer is the page that linked here. Empty for the seed.
	Referrer string `json:"referrer,omitempty"`

	// Title is the page title extracted from the <title> tag.
	Title string `json:"title,omitempty"`

	// StatusCode is the HTTP status observed for the navigation, when known.
	StatusCode int `json:"status_code,omitempty"`

	// HTML is the rendered DOM serialized after scripts settled.
	// Limited to MaxHTMLSize bytes.
	HTML []byte `json:"-"` // Excluded from JSON to reduce report size

	// Screenshot is the captured PNG, when screenshots are enabled.
	Screenshot []byte `json:"-"` // Excluded from JSON to reduce report size

	// Links are the outbound anchors found in the rendered document,
	// in document order, resolved to absolute URLs.
	Links []string `json:"links,omitempty"`

	// Status reports whether the capture succeeded.
	Status PageStatus `json:"status"`

	// StatusText is the human-readable status for serialized output.
	StatusText string `json:"status_text"`

	// FailReason explains a failed capture.
	FailReason string `json:"fail_reason,omitempty"`

	// Attempts is the number of render attempts spent on this page.
	Attempts int `json:"attempts"`

	// ContentHash is the SHA-256 hash of the rendered HTML.
	// Used for deduplication and change detection between runs.
	ContentHash string `json:"content_hash,omitempty"`

	// CapturedAt is when the final render attempt finished.
	CapturedAt time.Time `json:"captured_at"`

	// HTMLFile is the run-relative path of the persisted HTML document.
	// Set by the storage sink after the write lands.
	HTMLFile string `json:"html_file,omitempty"`

	// ScreenshotFile is the run-relative path of the persisted screenshot.
	// Set by the storage sink after the write lands.
	ScreenshotFile string `json:"screenshot_file,omitempty"`
}

// NewCaptureResult creates a capture for the given task.
func NewCaptureResult(task CrawlTask) *CaptureResult {
	return &CaptureResult{
		URL:      task.URL,
		Depth:    task.Depth,
		Referrer: task.Referrer,
	}
}

// MarkSuccess records a successful capture and stamps the capture time.
func (c *CaptureResult) MarkSuccess() {
	c.Status = StatusSuccess
	c.StatusText = StatusSuccess.String()
	c.CapturedAt = time.Now()
}

// MarkFailed records a failed capture with the reason the attempts exhausted.
func (c *CaptureResult) MarkFailed(reason string) {
	c.Status = StatusFailed
	c.StatusText = StatusFailed.String()
	c.FailReason = reason
	c.CapturedAt = time.Now()
}

// ComputeHash calculates and sets the SHA-256 hash of the rendered HTML.
// This should be called after setting the HTML field.
func (c *CaptureResult) ComputeHash() {
	if len(c.HTML) == 0 {
		c.ContentHash = ""
		return
	}

	hash := sha256.Sum256(c.HTML)
	c.ContentHash = hex.EncodeToString(hash[:])
}

// TruncateHTML ensures the rendered document doesn't exceed MaxHTMLSize.
// Call this after setting HTML to enforce the size limit.
func (c *CaptureResult) TruncateHTML() {
	if len(c.HTML) > MaxHTMLSize {
		c.HTML = c.HTML[:MaxHTMLSize]
	}
}

// ReleaseBodies drops the in-memory HTML and screenshot bytes.
// The storage sink calls this once both are persisted so long crawls don't
// accumulate page bodies in the report.
func (c *CaptureResult) ReleaseBodies() {
	c.HTML = nil
	c.Screenshot = nil
}
