// Package storage persists crawl captures to disk.
//
// Each run gets its own timestamped directory under the output root:
//
//	<root>/<timestamp>/
//	    html/            rendered documents
//	    screenshots/     PNG captures
//	    page_index.json  per-page index with run metadata
//
// Design decision: Captures flow through a bounded queue to a single
// writer goroutine because:
// 1. Workers must not stall on disk I/O between renders
// 2. One writer means the page index needs no locking
// 3. A bounded queue gives backpressure instead of unbounded memory growth
//
// Save hands the capture over and returns; the writer owns the capture
// until Close drains the queue, writes the index, and returns the first
// write error it saw. Callers must not read a saved capture's file paths
// before Close returns.
package storage
