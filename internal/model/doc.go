// Package model defines the core data structures used throughout sitesnap.
//
// This package contains the following main types:
//   - CrawlTask: A unit of crawl work (URL plus discovery depth)
//   - CaptureResult: Everything captured for a single rendered page
//   - CrawlSummary: Terminal accounting for a crawl run
//   - CrawlReport: The full record of one run, including all captures
//   - Phase: The orchestrator life cycle state
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, storage, database, report) need to
// use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
