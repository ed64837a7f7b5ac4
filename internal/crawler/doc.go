// Package crawler implements the authenticated breadth-first crawl.
//
// # Architecture
//
// The package is organized around four cooperating pieces:
//
//   - Classifier: pure scope decisions for discovered URLs (depth bound,
//     origin containment, exclude patterns, normalization)
//   - Frontier: the FIFO work queue plus the visited set; Push is one
//     atomic classify-dedup-enqueue step
//   - Pool: the fixed-size set of render workers that pop tasks, keep the
//     session valid, render pages, and feed links back to the frontier
//   - Orchestrator: the phase machine that runs authentication, the crawl,
//     the graceful drain, and the final accounting
//
// Design decision: We split the crawl into these pieces rather than one
// crawler loop because:
//  1. The classifier stays pure and exhaustively table-testable
//  2. The frontier's lock is the single place where dedup and ordering
//     are decided, so breadth-first order survives any worker count
//  3. Workers and orchestrator can be exercised in tests with fake
//     render engines and clocks
//
// # Ordering
//
// Breadth-first order is a consequence of two rules: the frontier is
// strictly FIFO, and workers push discovered links at depth+1 before
// marking their task done. Drained() therefore only reports true when no
// task could still produce work.
//
// # Politeness
//
// The crawl is intentionally gentle with the target application:
//   - fixed worker count, no dynamic scaling
//   - per-worker delay between tasks
//   - bounded retries with doubling backoff
//   - optional cap on total captured pages
//
// # Usage
//
//	orch, err := crawler.NewOrchestrator(cfg, sessions, engine, store, logger)
//	if err != nil {
//		return err
//	}
//	report, err := orch.Run(ctx)
//
// Run always returns a report with a summary attached, even when the run
// fails or is cancelled.
package crawler
