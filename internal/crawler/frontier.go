package crawler

import (
	"log/slog"
	"sync"

	"github.com/sitesnap/sitesnap/internal/model"
)

// FrontierStats is a snapshot of the frontier's counters.
type FrontierStats struct {
	// Enqueued counts URLs accepted into the queue, the seed included.
	Enqueued int

	// Duplicates counts URLs discovered again after already being enqueued.
	Duplicates int

	// Excluded counts rejected URLs by verdict identifier.
	Excluded map[string]int

	// Pending is the current queue length.
	Pending int

	// Outstanding is the number of popped tasks not yet marked done.
	Outstanding int
}

// ExcludedTotal returns the number of rejected URLs across all reasons.
func (s FrontierStats) ExcludedTotal() int {
	total := 0
	for _, n := range s.Excluded {
		total += n
	}
	return total
}

// Frontier is the crawl's work queue: a FIFO of tasks plus the set of
// URLs already enqueued this run.
//
// Push classifies, deduplicates, and enqueues under one lock, so a URL
// enters the queue at most once per run and the first discovery's depth
// wins. Pop is strict FIFO, which makes the crawl breadth-first as long
// as workers push discovered links at depth+1.
//
// All methods are safe for concurrent use.
type Frontier struct {
	classifier *Classifier
	logger     *slog.Logger

	mu          sync.Mutex
	queue       []model.CrawlTask
	visited     map[string]struct{}
	outstanding int
	enqueued    int
	duplicates  int
	excluded    map[string]int
}

// NewFrontier creates an empty frontier governed by the classifier.
func NewFrontier(classifier *Classifier, logger *slog.Logger) *Frontier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Frontier{
		classifier: classifier,
		logger:     logger,
		visited:    make(map[string]struct{}),
		excluded:   make(map[string]int),
	}
}

// Seed enqueues the start URL at depth 0. The seed bypasses exclude
// patterns, and only those: the operator asked for this URL explicitly,
// but it still has to parse and sit inside the scope.
func (f *Frontier) Seed(rawURL string) Classification {
	return f.push(rawURL, 0, "", true)
}

// Push classifies a discovered URL and enqueues it when accepted.
// Idempotent: pushing a URL that is already enqueued returns
// VerdictDuplicate and changes nothing, so the first discovery's depth
// is the one that sticks. The returned Classification tells the caller
// how the URL was counted.
func (f *Frontier) Push(rawURL string, depth int, referrer string) Classification {
	return f.push(rawURL, depth, referrer, false)
}

func (f *Frontier) push(rawURL string, depth int, referrer string, seed bool) Classification {
	cls := f.classifier.classify(rawURL, depth, seed)

	f.mu.Lock()
	defer f.mu.Unlock()

	if cls.Verdict != VerdictAccept {
		f.excluded[cls.Verdict.String()]++
		f.logger.Debug("url rejected",
			"url", rawURL,
			"verdict", cls.Verdict.String(),
			"pattern", cls.Pattern,
			"depth", depth)
		return cls
	}

	if _, seen := f.visited[cls.URL]; seen {
		f.duplicates++
		cls.Verdict = VerdictDuplicate
		return cls
	}

	f.visited[cls.URL] = struct{}{}
	f.queue = append(f.queue, model.CrawlTask{URL: cls.URL, Depth: depth, Referrer: referrer})
	f.enqueued++
	f.logger.Debug("url enqueued", "url", cls.URL, "depth", depth, "referrer", referrer)
	return cls
}

// Pop removes and returns the oldest task. The task counts as
// outstanding until the caller invokes TaskDone, so Drained stays false
// while it is being processed.
func (f *Frontier) Pop() (model.CrawlTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return model.CrawlTask{}, false
	}
	task := f.queue[0]
	f.queue = f.queue[1:]
	f.outstanding++
	return task, true
}

// TaskDone marks one popped task as finished. Call exactly once per
// successful Pop, after any links it produced have been pushed.
func (f *Frontier) TaskDone() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outstanding--
}

// Drained reports whether the crawl is complete: nothing queued and
// nothing outstanding. Because workers push links before TaskDone, a
// true result is stable; no new work can appear afterwards.
func (f *Frontier) Drained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) == 0 && f.outstanding == 0
}

// Stats returns a snapshot of the frontier's counters.
func (f *Frontier) Stats() FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	excluded := make(map[string]int, len(f.excluded))
	for k, v := range f.excluded {
		excluded[k] = v
	}
	return FrontierStats{
		Enqueued:    f.enqueued,
		Duplicates:  f.duplicates,
		Excluded:    excluded,
		Pending:     len(f.queue),
		Outstanding: f.outstanding,
	}
}
