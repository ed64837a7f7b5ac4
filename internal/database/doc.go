// Package database provides SQLite-based storage for sitesnap.
//
// This package implements the CrawlDB, which stores:
//   - Run records with their terminal summary and the full report JSON
//   - Per-page capture records with content hashes and file locations
//
// The per-page index is what powers `sitesnap compare`: two runs of the
// same base scope are diffed page by page without deserializing the full
// report bodies.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
