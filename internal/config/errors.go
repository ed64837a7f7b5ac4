package config

import "errors"

// Sentinel errors for configuration validation.
//
// Design decision: We use sentinel errors (package-level error variables)
// instead of custom error types because:
//  1. Callers can use errors.Is() for comparison
//  2. Error messages are consistent across the codebase
//  3. Simple string-based errors are sufficient; we don't need
//     structured error data for config validation
var (
	// ErrNoTarget is returned when no crawl target is specified.
	// At least one base URL is required for the tool to do anything.
	ErrNoTarget = errors.New("no target specified: provide at least one base URL to crawl")

	// ErrInvalidBaseURL is returned when a target or scope URL is not an
	// absolute http or https URL. Relative URLs cannot define a crawl scope.
	ErrInvalidBaseURL = errors.New("invalid URL: must be absolute with an http or https scheme")

	// ErrNoCredentials is returned when no username or password is available
	// after environment resolution. Authenticated crawling cannot proceed
	// without both.
	ErrNoCredentials = errors.New("missing credentials: set username and password (flags, environment, or env file)")

	// ErrInvalidMaxDepth is returned when the depth bound is negative.
	// Depth 0 means "capture only the seed page" and is valid.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be zero or positive")

	// ErrInvalidConcurrency is returned when the worker count is zero or
	// negative. At least one render worker is required.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be a positive number of workers")

	// ErrInvalidCrawlDelay is returned when the politeness delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be zero or positive")

	// ErrInvalidPageTimeout is returned when the page timeout is zero or
	// negative. Every navigation needs a positive time bound.
	ErrInvalidPageTimeout = errors.New("invalid page timeout: must be positive")

	// ErrInvalidSettleDelay is returned when the settle delay is negative.
	ErrInvalidSettleDelay = errors.New("invalid settle delay: must be zero or positive")

	// ErrInvalidRetries is returned when a retry budget is negative.
	// Zero retries is valid and disables retrying.
	ErrInvalidRetries = errors.New("invalid retries: must be zero or positive")

	// ErrInvalidBackoffBase is returned when the retry backoff base is zero
	// or negative.
	ErrInvalidBackoffBase = errors.New("invalid backoff base: must be positive")

	// ErrInvalidGracePeriod is returned when the shutdown grace period is
	// zero or negative. A cancelled run always gets a bounded drain window.
	ErrInvalidGracePeriod = errors.New("invalid grace period: must be positive")

	// ErrInvalidSessionTTL is returned when the session lifetime is zero or
	// negative.
	ErrInvalidSessionTTL = errors.New("invalid session ttl: must be positive")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	// Zero means no cap.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be zero or positive")

	// ErrInvalidWindowSize is returned when the browser viewport has a
	// non-positive width or height.
	ErrInvalidWindowSize = errors.New("invalid window size: width and height must be positive")

	// ErrInvalidBatchSize is returned when the target batch size is zero or
	// negative.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both JSON and Markdown
	// report formats are requested. Only one format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: cannot use both JSON and Markdown")

	// ErrInvalidExcludePattern is returned when an exclude pattern is empty
	// or not a valid glob.
	ErrInvalidExcludePattern = errors.New("invalid exclude pattern")

	// ErrInvalidLoginStep is returned when a configured login step is
	// malformed (unknown action, missing selector, or missing value source).
	ErrInvalidLoginStep = errors.New("invalid login step")

	// ErrConfigNotFound is returned when the configuration file does not
	// exist. This is not necessarily fatal; a missing default config file
	// simply means defaults are used.
	ErrConfigNotFound = errors.New("configuration file not found")
)
