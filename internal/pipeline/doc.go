// Package pipeline provides a framework for executing run steps in sequence.
//
// The pipeline pattern is used to process each target through the stages
// of a run: the authenticated crawl itself, then persistence into the
// capture database. Each stage is implemented as a Step that receives the
// run's report and can modify it.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running crawls
// 4. It gives failed and cancelled runs the same finalization path as
//    successful ones
//
// The pipeline supports both individual runs and batch processing with
// concurrency control using errgroup.
package pipeline
